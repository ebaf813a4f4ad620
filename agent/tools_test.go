package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DachengChen/shelfcare/db"
	"github.com/DachengChen/shelfcare/nl2sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoke(t *testing.T, tool Tool, input string) (string, error) {
	t.Helper()
	return tool.Invoke(context.Background(), json.RawMessage(input))
}

func TestDefaultToolsSchemasAreValidJSON(t *testing.T) {
	tools := DefaultTools(ToolDeps{Chain: &fakeChain{}, Inventory: &fakeInventory{}})
	require.Len(t, tools, 5)
	for _, tool := range tools {
		assert.True(t, json.Valid(tool.Schema), tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
}

func TestQueryDatabaseTool(t *testing.T) {
	chain := &fakeChain{answer: "Ibuprofen (4) is running low."}
	tool := QueryDatabaseTool(chain)

	out, err := invoke(t, tool, `{"question": "What stock is running low?"}`)
	require.NoError(t, err)
	assert.Equal(t, "Ibuprofen (4) is running low.", out)

	out, err = invoke(t, tool, `"What is the top category of products?"`)
	require.NoError(t, err)
	assert.Equal(t, "Ibuprofen (4) is running low.", out)
	assert.Equal(t, []string{"What stock is running low?", "What is the top category of products?"}, chain.asked)

	_, err = invoke(t, tool, `{"q": "x"}`)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestQueryDatabaseToolReportsChainErrors(t *testing.T) {
	chain := &fakeChain{err: &nl2sql.StageError{Stage: nl2sql.StageSynthesize, Kind: nl2sql.ErrSynthesis, Err: errors.New("503")}}
	out, err := invoke(t, QueryDatabaseTool(chain), `{"question": "What stock is running low?"}`)
	assert.ErrorIs(t, err, nl2sql.ErrSynthesis)
	assert.Equal(t, "Error executing database query: synthesize: query synthesis failed: 503", out)
}

func TestQueryDatabaseToolPassesRefusal(t *testing.T) {
	chain := &fakeChain{answer: nl2sql.RefusalText("DROP TABLE")}
	out, err := invoke(t, QueryDatabaseTool(chain), `{"question": "Drop the products table"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Action not allowed")
}

func TestDatabaseOverviewTool(t *testing.T) {
	cases := []struct {
		input string
		days  int
	}{
		{`{}`, 7},
		{`{"days": 30}`, 30},
		{`{"days": -3}`, -3},
		{`14`, 14},
	}
	for _, tc := range cases {
		inv := &fakeInventory{}
		out, err := invoke(t, DatabaseOverviewTool(inv), tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, []int{tc.days}, inv.days, tc.input)
		assert.True(t, strings.HasPrefix(out, "The database overview for the last"), out)
	}

	_, err := invoke(t, DatabaseOverviewTool(&fakeInventory{}), `{"days": "a week"}`)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDatabaseOverviewToolOutput(t *testing.T) {
	inv := &fakeInventory{overview: &db.Overview{Days: 7, ProductCount: 12, TotalStock: 340, ExpiringQuantity: 25}}
	out, err := invoke(t, DatabaseOverviewTool(inv), `{"days": 7}`)
	require.NoError(t, err)
	assert.Equal(t, "The database overview for the last 7 days is as follows:\nProduct Count: 12\nTotal Count: 340\nExpired Quantity: 25", out)
}

func TestAddProductTool(t *testing.T) {
	inv := &fakeInventory{}
	tool := AddProductTool(inv)

	out, err := invoke(t, tool, `{"product_name": "Paracetamol", "supplier": "Boots", "stock_count": 50, "cost": 1.25}`)
	require.NoError(t, err)
	assert.Equal(t, "Product added successfully to the database.", out)
	require.Len(t, inv.added, 1)
	assert.Equal(t, db.DefaultCategory, inv.added[0].Category)
	assert.Equal(t, 1.25, inv.added[0].Cost)
}

func TestAddProductToolValidation(t *testing.T) {
	inv := &fakeInventory{}
	tool := AddProductTool(inv)

	out, err := invoke(t, tool, `{"product_name": "", "stock_count": 5}`)
	assert.ErrorIs(t, err, db.ErrInvalidProduct)
	assert.Equal(t, "Product name is invalid, or more than 100 characters.", out)

	out, err = invoke(t, tool, `{"product_name": "Aspirin", "category": "Over the counter pain", "stock_count": 5}`)
	assert.ErrorIs(t, err, db.ErrInvalidProduct)
	assert.Equal(t, "Error with category, or category is more than 18 characters.", out)

	_, err = invoke(t, tool, `{"product_name": "Aspirin", "stock_count": "lots"}`)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, inv.added)
}

func TestAddProductToolStoreFailure(t *testing.T) {
	inv := &fakeInventory{addErr: errors.New("connection reset")}
	out, err := invoke(t, AddProductTool(inv), `{"product_name": "Aspirin", "stock_count": 5}`)
	assert.Error(t, err)
	assert.Equal(t, "Failed to add product to the database.", out)
}

func TestCurrentDateTool(t *testing.T) {
	out, err := invoke(t, CurrentDateTool(func() time.Time {
		return time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC)
	}), `{}`)
	require.NoError(t, err)
	assert.Equal(t, "2026-12-31", out)
}

func TestAskHumanToolWithoutHuman(t *testing.T) {
	out, err := invoke(t, AskHumanTool(NoHuman{}), `{"prompt": "Which supplier?"}`)
	assert.ErrorIs(t, err, ErrNoHuman)
	assert.Empty(t, out)

	_, err = invoke(t, AskHumanTool(NoHuman{}), `{}`)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegistry(t *testing.T) {
	noop := func(context.Context, json.RawMessage) (string, error) { return "", nil }

	_, err := NewRegistry(Tool{Name: "a", Invoke: noop}, Tool{Name: "a", Invoke: noop})
	assert.ErrorContains(t, err, "duplicate tool a")

	_, err = NewRegistry(Tool{Name: "Final Answer", Invoke: noop})
	assert.ErrorContains(t, err, "reserved")

	_, err = NewRegistry(Tool{Name: " ", Invoke: noop})
	assert.ErrorContains(t, err, "empty name")

	_, err = NewRegistry(Tool{Name: "b"})
	assert.ErrorContains(t, err, "no Invoke")

	reg, err := NewRegistry(Tool{Name: "zeta", Invoke: noop}, Tool{Name: "alpha", Invoke: noop})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, reg.Names())
	assert.Equal(t, "zeta", reg.Tools()[0].Name)
	_, ok := reg.Get("alpha")
	assert.True(t, ok)
}
