package registers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterSourceValidate(t *testing.T) {

	assert := assert.New(t)

	assert.NoError(RegisterSource{Address: 1, RegisterType: REGISTER_TYPE_HOLDING}.Validate())
	assert.NoError(RegisterSource{Address: 1, RegisterType: REGISTER_TYPE_INPUT, Format: FORMAT_FLOAT32}.Validate())
	assert.NoError(RegisterSource{Address: 1, RegisterType: REGISTER_TYPE_COIL}.Validate())
	assert.Error(RegisterSource{Address: 1}.Validate(), "missing register type")
	assert.Error(RegisterSource{Address: 1, RegisterType: "memory"}.Validate())
	assert.Error(RegisterSource{Address: 1, RegisterType: REGISTER_TYPE_HOLDING, Format: "int64"}.Validate())
	assert.Error(RegisterSource{Address: 1, RegisterType: REGISTER_TYPE_DISCRETE, Format: FORMAT_UINT16}.Validate())
}

func TestFormatValue(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("12", FormatValue(12))
	assert.Equal("-3.5", FormatValue(-3.5))
	assert.Equal("0.1", FormatValue(1*0.1))
}

func TestScaleDefault(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(1.0, RegisterSource{}.scale())
	assert.Equal(0.1, RegisterSource{Scale: 0.1}.scale())
}

func TestRecordTimer(t *testing.T) {

	require := require.New(t)

	var names []string
	inst := []ModbusInstrument{{
		RecordTime: func(fnName string, readTime time.Duration) {
			names = append(names, fnName)
		},
	}}
	RecordTimer("ReadRegister", inst)()
	RecordTimer("ReadCoil", nil)()

	require.Equal([]string{"ReadRegister"}, names)
}

func TestTestRegisterReader(t *testing.T) {

	require := require.New(t)

	reader := CreateTestRegisterReader(map[uint16]string{100: "42"})
	require.NoError(reader.Open())

	v, err := reader.Read(RegisterSource{Address: 100, RegisterType: REGISTER_TYPE_HOLDING})
	require.NoError(err)
	require.Equal("42", v)

	_, err = reader.Read(RegisterSource{Address: 101, RegisterType: REGISTER_TYPE_HOLDING})
	require.Error(err)

	reader.Set(101, "7")
	v, err = reader.Read(RegisterSource{Address: 101, RegisterType: REGISTER_TYPE_HOLDING})
	require.NoError(err)
	require.Equal("7", v)
	require.Equal(3, reader.Reads())
}

func TestCreateModbusRegisterReader(t *testing.T) {

	require := require.New(t)

	// the client is only created, no connection is attempted
	reader, err := CreateModbusRegisterReader("127.0.0.1", 1502, time.Second, nil, nil)
	require.NoError(err)
	require.NotNil(reader)

	_, err = reader.Read(RegisterSource{Address: 1, RegisterType: "memory"})
	require.Error(err)
}
