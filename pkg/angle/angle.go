package angle

import "math"

// PlusMinus180 is an angle in degrees, stored as a value in range (-180, 180].
// All operations clamp their output into range.
type PlusMinus180 struct {
	float64
}

func (a PlusMinus180) Add(b PlusMinus180) PlusMinus180 {
	return FromFloat(a.float64 + b.float64)
}

func (a PlusMinus180) Sub(b PlusMinus180) PlusMinus180 {
	return FromFloat(a.float64 - b.float64)
}

func (a PlusMinus180) AddFloat(f float64) PlusMinus180 {
	return FromFloat(a.float64 + f)
}

func (a PlusMinus180) SubFloat(f float64) PlusMinus180 {
	return FromFloat(a.float64 - f)
}

// Float returns the angle in degrees, range (-180, 180].
func (a PlusMinus180) Float() float64 {
	return a.float64
}

// FromFloat converts a float of any magnitude to a PlusMinus180 by calculating
// f mod 360 and shifting into range.
func FromFloat(f float64) PlusMinus180 {
	d := math.Mod(f, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return PlusMinus180{d}
}

// Nearest returns the heading equivalent to target (mod 360) that is closest to
// current, so that turning from current to the result never exceeds 180 degrees.
func Nearest(current, target float64) float64 {
	return current + FromFloat(target-current).Float()
}

// Unwrapper converts a stream of wrapped yaw readings into a continuous
// rotation.  The first reading defines the origin.
type Unwrapper struct {
	started    bool
	last       PlusMinus180
	continuous float64
}

// Update feeds a new wrapped reading and returns the continuous rotation
// accumulated since the first reading (or the last Reset).
func (u *Unwrapper) Update(yaw float64) float64 {
	reading := FromFloat(yaw)
	if !u.started {
		u.started = true
		u.last = reading
		return u.continuous
	}
	u.continuous += reading.Sub(u.last).Float()
	u.last = reading
	return u.continuous
}

// Rotation returns the last computed continuous rotation.
func (u *Unwrapper) Rotation() float64 {
	return u.continuous
}

// Reset zeroes the continuous rotation, keeping the last reading as the new
// origin.
func (u *Unwrapper) Reset() {
	u.continuous = 0
}
