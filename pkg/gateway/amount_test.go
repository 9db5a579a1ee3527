package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaiseToRupees(t *testing.T) {
	assert.Equal(t, "500.00", PaiseToRupees(50000))
	assert.Equal(t, "0.01", PaiseToRupees(1))
	assert.Equal(t, "1234.56", PaiseToRupees(123456))
}

func TestRupeesToPaise(t *testing.T) {
	paise, err := RupeesToPaise("500.00")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), paise)

	paise, err = RupeesToPaise("0.01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), paise)

	paise, err = RupeesToPaise("500")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), paise)
}

func TestRupeesToPaiseRejectsSubPaise(t *testing.T) {
	_, err := RupeesToPaise("500.005")
	require.Error(t, err)
}

func TestRupeesToPaiseRejectsGarbage(t *testing.T) {
	_, err := RupeesToPaise("five hundred")
	require.Error(t, err)
}

func TestNormalizeSMEPayState(t *testing.T) {
	assert.Equal(t, StatusPaid, normalizeSMEPayState("SUCCESS"))
	assert.Equal(t, StatusPending, normalizeSMEPayState("pending"))
	assert.Equal(t, StatusFailed, normalizeSMEPayState("expired"))
	assert.Equal(t, StatusUnknown, normalizeSMEPayState("weird"))
}

func TestNormalizeCashfreeState(t *testing.T) {
	assert.Equal(t, StatusPaid, normalizeCashfreeState("paid"))
	assert.Equal(t, StatusPending, normalizeCashfreeState("ACTIVE"))
	assert.Equal(t, StatusFailed, normalizeCashfreeState("TERMINATED"))
	assert.Equal(t, StatusUnknown, normalizeCashfreeState(""))
}
