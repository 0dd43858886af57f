package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const yamlFixture = `
cart:
  lines:
    - id: gid://shop/CartLine/1
      quantity: 4
      merchandise:
        __typename: ProductVariant
        product:
          id: gid://shop/Product/1
      cost:
        amountPerQuantity:
          amount: "12.50"
          currencyCode: USD
discount:
  discountClasses: [PRODUCT]
  metafield:
    value: '{"configurations":[{"type":"volume-same-product","quantity":3,"value":15}]}'
`

func TestRunYAMLFromStdin(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"-input", "-"}, strings.NewReader(yamlFixture), &out))

	var res struct {
		Operations []struct {
			AddProductDiscounts struct {
				Candidates []struct {
					Message string `json:"message"`
				} `json:"candidates"`
			} `json:"addProductDiscounts"`
		} `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.Len(t, res.Operations, 1)
	require.Equal(t, "Buy 3+, save 15%", res.Operations[0].AddProductDiscounts.Candidates[0].Message)
}

func TestRunConfigOverrideAndReport(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
mode: specific
configurations:
  - type: volume-same-product
    quantity: 3
    value: 15
`), 0o600))

	var out bytes.Buffer
	err := run([]string{"-config", cfgPath, "-report", "-validate"}, strings.NewReader(yamlFixture), &out)
	require.NoError(t, err)

	var rep struct {
		Outcome string            `json:"outcome"`
		Issues  map[string]string `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	require.Equal(t, "no_candidates", rep.Outcome)
	require.Contains(t, rep.Issues, "specificIds")
}

func TestRunJSONFileEmptyCart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cart":{"lines":[]},"discount":{"discountClasses":["PRODUCT"]}}`), 0o600))

	var out bytes.Buffer
	require.NoError(t, run([]string{"-input", path}, nil, &out))
	require.JSONEq(t, `{"operations":[]}`, out.String())
}

func TestRunRejectsUnknownFlags(t *testing.T) {
	require.Error(t, run([]string{"-nope"}, strings.NewReader(""), &bytes.Buffer{}))
}
