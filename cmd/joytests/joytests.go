package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tigerbot-team/diffdrive/pkg/joystick"
	"github.com/tigerbot-team/diffdrive/pkg/teleop"
)

// joytests prints raw joystick events along with the frame the teleop mixer
// would see, to check axis mapping and deadband settings.
func main() {
	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())

	// Hook Ctrl-C etc.
	registerSignalHandlers(cancel)

	jDev := os.Getenv("JOYSTICK_DEVICE")
	if jDev == "" {
		jDev = "/dev/input/js0"
	}
	var j *joystick.Joystick
	for firstLog := true; ; firstLog = false {
		var err error
		j, err = joystick.Open(jDev)
		if err == nil {
			break
		}
		if firstLog {
			fmt.Printf("Waiting for joystick: %v.\n", err)
		}
		time.Sleep(1 * time.Second)
	}
	fmt.Printf("Opened joystick\n")

	cfg := teleop.DefaultConfig()
	events := make(chan *joystick.Event)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer close(events)
		j.Loop(ctx, &wg, events)
	}()

	for je := range events {
		fwd, err := j.AxisPercent(cfg.ForwardAxis)
		if err != nil {
			fmt.Println("Joystick failed:", err)
			break
		}
		turn, _ := j.AxisPercent(cfg.TurnAxis)
		frame := teleop.Frame{Forward: fwd, Turn: turn}
		left, right := frame.Raw()
		fmt.Printf("%v -> frame %+v raw L=%.0f R=%.0f\n", je, frame, left, right)
	}
	wg.Wait()
}

func registerSignalHandlers(cancelFunc context.CancelFunc) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Println("Signal: ", s)
		cancelFunc()
	}()
}
