package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase passthrough", "account", "account"},
		{"mixed case", "SalesOrder", "salesorder"},
		{"spaces stripped", "Sales Order", "salesorder"},
		{"underscores stripped", "sales_order", "salesorder"},
		{"punctuation stripped", "Line-Item (v2)", "lineitemv2"},
		{"digits kept", "Address2", "address2"},
		{"empty input", "", ""},
		{"only punctuation", "---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestNormalizeName_VariantsCompareEqual(t *testing.T) {
	variants := []string{"Sales Order", "sales_order", "SalesOrder", "SALES ORDER"}
	for _, v := range variants {
		assert.Equal(t, "salesorder", NormalizeName(v))
	}
}
