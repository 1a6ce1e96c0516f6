package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackOfficeRoles(t *testing.T) {
	assert.ElementsMatch(t, []string{"owner", "admin", "manager"}, BackOfficeRoleNames())
	assert.False(t, MemberRoleCashier.IsBackOffice())

	role, err := ParseMemberRole("manager")
	require.NoError(t, err)
	assert.True(t, role.IsBackOffice())

	_, err = ParseMemberRole("staff")
	assert.Error(t, err)
}

func TestParseOutboxDLQErrorReason(t *testing.T) {
	r, err := ParseOutboxDLQErrorReason("max_attempts")
	require.NoError(t, err)
	assert.Equal(t, OutboxDLQReasonMaxAttempts, r)

	_, err = ParseOutboxDLQErrorReason("timeout")
	assert.Error(t, err)
}

func TestParseCashMovementType(t *testing.T) {
	in, err := ParseCashMovementType("in")
	require.NoError(t, err)
	assert.Equal(t, CashMovementIn, in)

	_, err = ParseCashMovementType("transfer")
	assert.Error(t, err)
}

func TestParseShiftStatus(t *testing.T) {
	s, err := ParseShiftStatus("closed")
	require.NoError(t, err)
	assert.Equal(t, ShiftStatusClosed, s)
	assert.False(t, ShiftStatus("paused").IsValid())
}

func TestParsePaymentMethodRoutesUnknownAsNonCash(t *testing.T) {
	assert.Equal(t, PaymentMethodCash, ParsePaymentMethod(" CASH "))
	assert.Equal(t, PaymentMethodSplit, ParsePaymentMethod("split"))
	assert.Equal(t, PaymentMethodNonCash, ParsePaymentMethod("qris"))
	assert.True(t, ParsePaymentMethod("cash").IsCash())
}
