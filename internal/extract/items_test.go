package extract

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/verifactura/invoice-extract-service/internal/models"
	"github.com/verifactura/invoice-extract-service/internal/textnorm"
)

func newParser() *ItemParser {
	return NewItemParser(models.ItemsConfig{MaxDescriptionLines: 5, NumberWindowLines: 8})
}

func eq(t *testing.T, name string, got *decimal.Decimal, want string) {
	t.Helper()
	if want == "" {
		if got != nil {
			t.Errorf("%s = %s, want nil", name, got)
		}
		return
	}
	w, _ := decimal.NewFromString(want)
	if got == nil || !got.Equal(w) {
		t.Errorf("%s = %v, want %s", name, got, want)
	}
}

func TestParseLabeledItems(t *testing.T) {
	text := `ITEMS:
1. Producto A - Cant: 10 - Precio: $50.000 - Total: $500.000
2. Producto B - Cant: 8 - Precio: $50.000 - Total: $400.000
Subtotal: $900.000`

	items := newParser().Parse(textnorm.Lines(text))
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	if items[0].Description != "Producto A" {
		t.Errorf("Description = %q", items[0].Description)
	}
	eq(t, "Quantity", items[0].Quantity, "10")
	eq(t, "UnitPrice", items[0].UnitPrice, "50000")
	eq(t, "LineTotal", items[0].LineTotal, "500000")
	eq(t, "LineTotal[1]", items[1].LineTotal, "400000")
}

func TestParseMultiLineDescription(t *testing.T) {
	text := `ITEMS
1. Widget frame
heavy duty steel
2,00 each
100,00
200,00
TOTAL: 300,00`

	items := newParser().Parse(textnorm.Lines(text))
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}

	if items[0].Description != "Widget frame heavy duty steel" {
		t.Errorf("Description = %q", items[0].Description)
	}
	eq(t, "Quantity", items[0].Quantity, "2")
	eq(t, "UnitPrice", items[0].UnitPrice, "100")
	eq(t, "LineTotal", items[0].LineTotal, "200")
}

func TestParseTrailingAmount(t *testing.T) {
	text := `Descripcion
Servicio de mantenimiento 350,00
IVA: 66,50`

	items := newParser().Parse(textnorm.Lines(text))
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Description != "Servicio de mantenimiento" {
		t.Errorf("Description = %q", items[0].Description)
	}
	eq(t, "LineTotal", items[0].LineTotal, "350")
}

func TestParseRejectsSummaryRows(t *testing.T) {
	text := `ITEMS
Descuento aplicado 50,00
Producto real 100,00
Subtotal: 100,00`

	items := newParser().Parse(textnorm.Lines(text))
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (summary row must be rejected)", len(items))
	}
	if items[0].Description != "Producto real" {
		t.Errorf("Description = %q", items[0].Description)
	}
}

func TestParseNoTable(t *testing.T) {
	if items := newParser().Parse(textnorm.Lines("just a plain receipt\nTotal: 12,00")); len(items) != 0 {
		t.Errorf("got %d items, want 0", len(items))
	}
}

func TestParseEmptyInput(t *testing.T) {
	if items := newParser().Parse(nil); len(items) != 0 {
		t.Errorf("got %d items, want 0", len(items))
	}
}
