package registers

import (
	"errors"
	"fmt"
)

type RegisterType string

const (
	REGISTER_TYPE_HOLDING  RegisterType = "holding"
	REGISTER_TYPE_INPUT    RegisterType = "input"
	REGISTER_TYPE_COIL     RegisterType = "coil"
	REGISTER_TYPE_DISCRETE RegisterType = "discrete"
)

type Format string

const (
	FORMAT_UINT16  Format = "uint16"
	FORMAT_INT16   Format = "int16"
	FORMAT_UINT32  Format = "uint32"
	FORMAT_FLOAT32 Format = "float32"
)

// RegisterSource locates the value of a series on a Modbus TCP device.
type RegisterSource struct {
	UnitId       uint8        `yaml:"unitId" json:"unitId"`
	Address      uint16       `yaml:"address" json:"address"`
	RegisterType RegisterType `yaml:"registerType" json:"registerType"`
	Format       Format       `yaml:"format" json:"format"`
	Scale        float64      `yaml:"scale" json:"scale"`
}

type RegisterReader interface {
	Open() error
	Close() error
	Read(src RegisterSource) (string, error)
}

func (src RegisterSource) Validate() error {
	switch src.RegisterType {
	case REGISTER_TYPE_HOLDING, REGISTER_TYPE_INPUT:
	case REGISTER_TYPE_COIL, REGISTER_TYPE_DISCRETE:
		if src.Format != "" {
			return fmt.Errorf("register %d: format is not allowed for %s", src.Address, src.RegisterType)
		}
		return nil
	case "":
		return errors.New("register type is required")
	default:
		return fmt.Errorf("register %d: unknown register type %q", src.Address, src.RegisterType)
	}
	switch src.Format {
	case "", FORMAT_UINT16, FORMAT_INT16, FORMAT_UINT32, FORMAT_FLOAT32:
	default:
		return fmt.Errorf("register %d: unknown format %q", src.Address, src.Format)
	}
	return nil
}

func (src RegisterSource) scale() float64 {
	if src.Scale == 0 {
		return 1
	}
	return src.Scale
}
