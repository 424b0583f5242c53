package registers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

type ModbusRegisterReader struct {
	client     *modbus.ModbusClient
	instrument []ModbusInstrument
}

func CreateModbusRegisterReader(host string, port uint, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (RegisterReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	// instrumentation
	var inst []ModbusInstrument
	if logger != nil {
		logInst := debugLoggerInstrumentation(logger.With(zap.String("target", host)))
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}
	return &ModbusRegisterReader{
		client:     client,
		instrument: inst,
	}, nil
}

func (reader *ModbusRegisterReader) Open() error {
	return reader.client.Open()
}

func (reader *ModbusRegisterReader) Close() error {
	return reader.client.Close()
}

func (reader *ModbusRegisterReader) Read(src RegisterSource) (string, error) {
	if err := src.Validate(); err != nil {
		return "", err
	}
	if err := reader.client.SetUnitId(src.UnitId); err != nil {
		return "", err
	}

	switch src.RegisterType {
	case REGISTER_TYPE_COIL:
		defer RecordTimer("ReadCoil", reader.instrument)()
		v, err := reader.client.ReadCoil(src.Address)
		return bitValue(v), err
	case REGISTER_TYPE_DISCRETE:
		defer RecordTimer("ReadDiscreteInput", reader.instrument)()
		v, err := reader.client.ReadDiscreteInput(src.Address)
		return bitValue(v), err
	}

	regType := modbus.HOLDING_REGISTER
	if src.RegisterType == REGISTER_TYPE_INPUT {
		regType = modbus.INPUT_REGISTER
	}

	var value float64
	switch src.Format {
	case FORMAT_UINT32:
		v, err := reader.readUint32(src.Address, regType)
		if err != nil {
			return "", err
		}
		value = float64(v)
	case FORMAT_FLOAT32:
		v, err := reader.readFloat32(src.Address, regType)
		if err != nil {
			return "", err
		}
		value = float64(v)
	case FORMAT_INT16:
		v, err := reader.readRegister(src.Address, regType)
		if err != nil {
			return "", err
		}
		value = float64(int16(v))
	default:
		v, err := reader.readRegister(src.Address, regType)
		if err != nil {
			return "", err
		}
		value = float64(v)
	}
	return FormatValue(value * src.scale()), nil
}

func (reader *ModbusRegisterReader) readRegister(addr uint16, regType modbus.RegType) (uint16, error) {
	defer RecordTimer("ReadRegister", reader.instrument)()
	return reader.client.ReadRegister(addr, regType)
}

func (reader *ModbusRegisterReader) readUint32(addr uint16, regType modbus.RegType) (uint32, error) {
	defer RecordTimer("ReadUint32", reader.instrument)()
	return reader.client.ReadUint32(addr, regType)
}

func (reader *ModbusRegisterReader) readFloat32(addr uint16, regType modbus.RegType) (float32, error) {
	defer RecordTimer("ReadFloat32", reader.instrument)()
	return reader.client.ReadFloat32(addr, regType)
}

// FormatValue renders a register value the way it is matched against state rules.
func FormatValue(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func bitValue(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func debugLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus call", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}

// ensure interface compliance
var _ RegisterReader = (*ModbusRegisterReader)(nil)
