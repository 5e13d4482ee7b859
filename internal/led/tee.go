package led

import (
	"errors"

	"github.com/lucasb-eyer/go-colorful"
)

type tee []Driver

// Tee relays every call to each driver in order. The first error stops the
// call from reaching the remaining drivers, except for Close which always
// reaches all of them.
func Tee(drivers ...Driver) Driver {
	out := make(tee, 0, len(drivers))
	for _, d := range drivers {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

func (t tee) SetRGB(i int, c colorful.Color) error {
	for _, d := range t {
		if err := d.SetRGB(i, c); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Flush() error {
	for _, d := range t {
		if err := d.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Clear() {
	for _, d := range t {
		if c, ok := d.(clearer); ok {
			c.Clear()
		}
	}
}

func (t tee) Close() error {
	var errs []error
	for _, d := range t {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
