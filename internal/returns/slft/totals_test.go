package slft

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
)

func tonnes(s string) domain.Amount { return domain.ParseAmount(s) }

func TestRecalculate(t *testing.T) {
	r := &Return{
		Year: "2025",
		Sites: []Site{
			{ID: "100", Wastes: []Waste{
				{StandardTonnage: tonnes("10.50")},
				{LowerTonnage: tonnes("2")},
			}},
			{ID: "200", Wastes: []Waste{
				{StandardTonnage: tonnes("1"), ExemptTonnage: tonnes("3"), ExemptionReason: "QUARRY"},
			}},
		},
	}

	r.Recalculate()

	want := Totals{
		StandardTonnage: tonnes("11.50"),
		LowerTonnage:    tonnes("2.00"),
		ExemptTonnage:   tonnes("3.00"),
		StandardTax:     tonnes("1450.72"),
		LowerTax:        tonnes("8.10"),
		TotalTax:        tonnes("1458.82"),
	}
	if diff := cmp.Diff(want, r.Totals); diff != "" {
		t.Errorf("return totals mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "1332.67", r.Sites[0].Totals.TotalTax.String())
	assert.Equal(t, "126.15", r.Sites[1].Totals.TotalTax.String())
}

func TestRatesFor(t *testing.T) {
	assert.Equal(t, ratesByYear[2025], ratesFor("2030"))
	assert.Equal(t, ratesByYear[2024], ratesFor("2024"))
	assert.Equal(t, ratesByYear[2023], ratesFor("2010"))
	assert.Equal(t, ratesByYear[2023], ratesFor(""))
}

func TestWasteValidate(t *testing.T) {
	t.Run("description", func(t *testing.T) {
		w := &Waste{EWCCode: "17-05", Description: "soil"}
		assert.Equal(t, []string{"is not a valid European Waste Catalogue code"}, w.Validate(ContextWasteDescription).On("ewc_code"))

		w.EWCCode = "17 05 04"
		assert.False(t, w.Validate(ContextWasteDescription).Any())
	})

	t.Run("tonnage needs at least one band", func(t *testing.T) {
		w := &Waste{StandardTonnage: tonnes("0")}
		assert.Equal(t, []string{"enter the tonnage for at least one band"}, w.Validate(ContextWasteTonnage).On("standard_tonnage"))

		w.LowerTonnage = tonnes("-1")
		assert.Equal(t, []string{"must be greater than or equal to 0.00"}, w.Validate(ContextWasteTonnage).On("lower_tonnage"))
	})

	t.Run("imported rows need a reason only when exempt", func(t *testing.T) {
		w := &Waste{EWCCode: "170504", Description: "soil", StandardTonnage: tonnes("1")}
		assert.False(t, w.Validate(ContextImport).Any())

		w.ExemptTonnage = tonnes("2")
		assert.Equal(t, []string{"can't be blank"}, w.Validate(ContextImport).On("exemption_reason"))
	})
}

func TestParseWastes(t *testing.T) {
	t.Run("reads rows by header name", func(t *testing.T) {
		csv := "\ufeffDescription,EWC_Code,standard_tonnage,exempt_tonnage,exemption_reason\n" +
			"Soil and stones,17 05 04,12.5,,\n" +
			"Dredging spoil,17 05 06,,4,dredging\n"
		rows, errs, err := ParseWastes(strings.NewReader(csv), "100")
		require.NoError(t, err)
		assert.Empty(t, errs)
		require.Len(t, rows, 2)
		assert.Equal(t, "17 05 04", rows[0].EWCCode)
		assert.Equal(t, "12.5", rows[0].StandardTonnage.String())
		assert.True(t, rows[0].LowerTonnage.Blank())
		assert.Equal(t, "DREDGING", rows[1].ExemptionReason)
		assert.Equal(t, "100", rows[1].SiteID)
		assert.NotEqual(t, rows[0].ID, rows[1].ID)
	})

	t.Run("missing mandatory columns", func(t *testing.T) {
		_, _, err := ParseWastes(strings.NewReader("description,tonnage\nsoil,1\n"), "100")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ewc_code")
	})

	t.Run("empty file", func(t *testing.T) {
		_, _, err := ParseWastes(strings.NewReader(""), "100")
		require.Error(t, err)
	})

	t.Run("a broken line stops the read and is reported", func(t *testing.T) {
		csv := "ewc_code,description,standard_tonnage\n" +
			"17 05 04,soil,1\n" +
			"17 05 04,\"unterminated,1\n"
		rows, errs, err := ParseWastes(strings.NewReader(csv), "100")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		require.Len(t, errs.On("file"), 1)
		assert.Contains(t, errs.On("file")[0], "line ")
	})
}
