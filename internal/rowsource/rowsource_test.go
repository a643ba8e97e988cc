package rowsource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRows_CSV(t *testing.T) {
	data := []byte("name,price,Category\nWidget,$12.50,Tools\nGadget,9.99,Electronics\n")

	rows, err := Rows("catalog.csv", data)

	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "Widget", rows[0]["name"])
	assert.Equal(t, "$12.50", rows[0]["price"])
	assert.Equal(t, "Electronics", rows[1]["Category"])
}

func TestRows_CSVTrimsHeadersAndValues(t *testing.T) {
	data := []byte(" name , price \n  Widget  , 10 \n")

	rows, err := Rows("catalog.csv", data)

	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "Widget", rows[0]["name"])
	assert.Equal(t, "10", rows[0]["price"])
}

func TestRows_JSONArray(t *testing.T) {
	data := []byte(`[{"name":"Widget","price":12.5},{"name":"Gadget"}]`)

	rows, err := Rows("catalog.json", data)

	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "Widget", rows[0]["name"])
	assert.Equal(t, 12.5, rows[0]["price"])
}

func TestRows_JSONItemsObject(t *testing.T) {
	data := []byte(`{"items":[{"name":"Widget"}]}`)

	rows, err := Rows("catalog.json", data)

	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "Widget", rows[0]["name"])
}

func TestRows_JSONInvalidShape(t *testing.T) {
	data := []byte(`{"products":[{"name":"Widget"}]}`)

	_, err := Rows("catalog.json", data)

	assert.ErrorIs(t, err, ErrParse)
}

func TestRows_UnsupportedFormat(t *testing.T) {
	_, err := Rows("catalog.pdf", []byte("whatever"))

	assert.ErrorIs(t, err, ErrParse)
}

func TestRows_CSVMissingHeader(t *testing.T) {
	_, err := Rows("catalog.csv", []byte(""))

	assert.ErrorIs(t, err, ErrParse)
}

func TestRows_XLSXMalformed(t *testing.T) {
	_, err := Rows("catalog.xlsx", []byte("not a real workbook"))

	assert.ErrorIs(t, err, ErrParse)
}
