package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatCents(t *testing.T) {
	require.Equal(t, "5.00", FormatCents(500))
	require.Equal(t, "0.05", FormatCents(5))
	require.Equal(t, "1234.99", FormatCents(123499))
	require.Equal(t, "0.00", FormatCents(0))

	m := NewMoney(250)
	require.EqualValues(t, 250, m.Cents)
	require.Equal(t, "2.50", m.Display)
}

func TestParamsScanAcceptsTextAndBytes(t *testing.T) {
	var p Params
	require.NoError(t, p.Scan(`{"orderId":"abc","total":500}`))
	require.Equal(t, "abc", p["orderId"])

	var fromBytes Params
	require.NoError(t, fromBytes.Scan([]byte(`{"status":"Confirmed"}`)))
	require.Equal(t, "Confirmed", fromBytes["status"])

	var empty Params
	require.NoError(t, empty.Scan(nil))
	require.Nil(t, empty)

	require.Error(t, p.Scan(42))
}

func TestParamsValue(t *testing.T) {
	v, err := Params(nil).Value()
	require.NoError(t, err)
	require.Equal(t, "{}", v)

	v, err = Params{"a": 1}.Value()
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, v.(string))
}
