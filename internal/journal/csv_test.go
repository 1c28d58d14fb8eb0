package journal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbooks/recon/internal/model"
)

func TestRoundTrip(t *testing.T) {
	legs := []model.Leg{
		leg("2024-08-001a", model.SourceBank, "bank-1f2e3d4c-0001", "150.00", model.Credit),
		leg("2024-08-001b", model.SourceSystem, "inv-1001", "150.00", model.Debit),
	}
	legs[0].Description = `ACME "FREIGHT", INC`

	var buf bytes.Buffer
	require.NoError(t, WriteLegs(&buf, legs))
	assert.True(t, strings.HasPrefix(buf.String(), "leg_id,reconciled_at,"))

	got, err := ReadLegs(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for i := range legs {
		assert.Equal(t, legs[i].LegID, got[i].LegID)
		assert.True(t, legs[i].ReconciledAt.Equal(got[i].ReconciledAt))
		assert.Equal(t, legs[i].Side, got[i].Side)
		assert.Equal(t, legs[i].TxnID, got[i].TxnID)
		assert.True(t, legs[i].Date.Equal(got[i].Date))
		assert.Equal(t, legs[i].Description, got[i].Description)
		assert.True(t, legs[i].Amount.Equal(got[i].Amount), "amount mismatch row %d", i)
		assert.Equal(t, legs[i].Type, got[i].Type)
	}
}

func TestMarshalLeg_KeepsPrecision(t *testing.T) {
	in := leg("2024-08-001a", model.SourceBank, "B1", "10.006", model.Credit)
	row := MarshalLeg(in)
	assert.Equal(t, "10.006", row[colAmount])

	out, err := UnmarshalLeg(row)
	require.NoError(t, err)
	assert.True(t, in.Amount.Equal(out.Amount), "got %s", out.Amount)
}

func TestAppendLegs_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, AppendLegs(&buf, []model.Leg{leg("2024-08-001a", model.SourceBank, "B1", "1.00", model.Credit)}))
	assert.True(t, strings.HasPrefix(buf.String(), "2024-08-001a,"))
}

func TestReadLegs_Empty(t *testing.T) {
	legs, err := ReadLegs(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, legs)
}

func TestUnmarshalLeg_Errors(t *testing.T) {
	good := MarshalLeg(leg("2024-08-001a", model.SourceBank, "B1", "1.00", model.Credit))

	tests := []struct {
		name string
		col  int
		val  string
		want string
	}{
		{"bad timestamp", colReconciledAt, "yesterday", "parsing reconciled_at"},
		{"bad date", colDate, "08/01/2024", "parsing date"},
		{"bad amount", colAmount, "lots", "parsing amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := append([]string(nil), good...)
			rec[tt.col] = tt.val
			_, err := UnmarshalLeg(rec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := UnmarshalLeg(good[:3])
	assert.Error(t, err)
}

func TestPairLegsAndGroup(t *testing.T) {
	pair := samplePair()
	pair.ID = "2024-08-004"
	legs := PairLegs(pair, func(i int) string { return pair.ID + string(rune('a'+i)) })

	require.Len(t, legs, 3)
	assert.Equal(t, "2024-08-004a", legs[0].LegID)
	assert.Equal(t, model.SourceBank, legs[0].Side)
	assert.Equal(t, "S2", legs[2].TxnID)

	pairs := GroupPairs(legs)
	require.Len(t, pairs, 1)
	assert.Equal(t, "2024-08-004", pairs[0].ID)
	assert.Equal(t, []string{"B1"}, pairs[0].Members(model.SourceBank))
	assert.Equal(t, []string{"S1", "S2"}, pairs[0].Members(model.SourceSystem))
	assert.True(t, pairs[0].Net().IsZero())
}
