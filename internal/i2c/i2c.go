package i2c

import "fmt"

// Path returns the device node for an I2C bus number.
func Path(bus int) string {
	return fmt.Sprintf("/dev/i2c-%d", bus)
}
