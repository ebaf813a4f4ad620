package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DachengChen/shelfcare/db"
	"github.com/DachengChen/shelfcare/nl2sql"
)

// Tool names.
const (
	ToolQueryDatabase    = "query_database"
	ToolDatabaseOverview = "database_overview"
	ToolAddProduct       = "add_product"
	ToolCurrentDate      = "current_date"
	ToolAskHuman         = "ask_human"
)

// QuestionAnswerer answers a natural-language database question.
// *nl2sql.Chain implements it.
type QuestionAnswerer interface {
	Run(ctx context.Context, question string) (*nl2sql.ChainResult, error)
}

// Inventory is the subset of *db.DB the inventory tools need.
type Inventory interface {
	Overview(ctx context.Context, days int) (*db.Overview, error)
	AddProduct(ctx context.Context, p db.NewProduct) (int64, error)
}

// ToolDeps collects what the built-in tools run against.
type ToolDeps struct {
	Chain     QuestionAnswerer
	Inventory Inventory
	Human     HumanInput
	Now       func() time.Time
}

// DefaultTools returns the built-in tool set.
func DefaultTools(deps ToolDeps) []Tool {
	if deps.Human == nil {
		deps.Human = NoHuman{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return []Tool{
		QueryDatabaseTool(deps.Chain),
		DatabaseOverviewTool(deps.Inventory),
		AskHumanTool(deps.Human),
		AddProductTool(deps.Inventory),
		CurrentDateTool(deps.Now),
	}
}

// ─────────────────────────────────────────────────────────────────
// query_database
// ─────────────────────────────────────────────────────────────────

// QueryDatabaseTool passes the user's question to the text-to-SQL chain.
func QueryDatabaseTool(chain QuestionAnswerer) Tool {
	return Tool{
		Name: ToolQueryDatabase,
		Description: "Use this to obtain information from the database about products, orders and product expiry " +
			"that no other tool can answer. The input must be the user's question in plain language, NOT a SQL query. " +
			"Returns the answer to the question. If an error is returned, rephrase the question and try again.",
		Schema: json.RawMessage(`{"type":"object","properties":{"question":{"type":"string","description":"the user's question in plain language"}},"required":["question"]}`),
		Invoke: func(ctx context.Context, input json.RawMessage) (string, error) {
			question, err := stringField(input, "question")
			if err != nil {
				return "", err
			}
			res, err := chain.Run(ctx, question)
			if err != nil {
				return "Error executing database query: " + err.Error(), err
			}
			return res.Answer, nil
		},
	}
}

// ─────────────────────────────────────────────────────────────────
// database_overview
// ─────────────────────────────────────────────────────────────────

// DatabaseOverviewTool reports product count, total stock and the
// quantity expiring within a window.
func DatabaseOverviewTool(inv Inventory) Tool {
	return Tool{
		Name: ToolDatabaseOverview,
		Description: "Use ONLY when the user explicitly asks for an overview. Takes the number of days to span; " +
			"if no days are mentioned use 7. Returns the total product count, the total stock count and the " +
			"quantity expiring within that many days.",
		Schema: json.RawMessage(`{"type":"object","properties":{"days":{"type":"integer","minimum":0,"default":7}}}`),
		Invoke: func(ctx context.Context, input json.RawMessage) (string, error) {
			days, err := daysField(input)
			if err != nil {
				return "", err
			}
			ov, err := inv.Overview(ctx, days)
			if err != nil {
				return "Error occurred while fetching database overview. " + err.Error(), err
			}
			return ov.String(), nil
		},
	}
}

func daysField(input json.RawMessage) (int, error) {
	input = bytes.TrimSpace(input)
	var n int
	if err := json.Unmarshal(input, &n); err == nil {
		return n, nil
	}
	var args struct {
		Days *int `json:"days"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return 0, fmt.Errorf("%w: days must be an integer", ErrValidation)
	}
	if args.Days == nil {
		return db.DefaultOverviewDays, nil
	}
	return *args.Days, nil
}

// ─────────────────────────────────────────────────────────────────
// add_product
// ─────────────────────────────────────────────────────────────────

const (
	addProductOK     = "Product added successfully to the database."
	addProductFailed = "Failed to add product to the database."
)

// AddProductTool inserts a product.
func AddProductTool(inv Inventory) Tool {
	return Tool{
		Name: ToolAddProduct,
		Description: "Use this when you need to add a product to the database. Takes the product name, supplier, " +
			"category, stock count, cost and description. Returns whether the product was added. " +
			"Ask the human for any required value you do not know.",
		Schema: json.RawMessage(`{"type":"object","properties":{` +
			`"product_name":{"type":"string","maxLength":100},` +
			`"supplier":{"type":"string","maxLength":100},` +
			`"category":{"type":"string","maxLength":18,"default":"Medicine"},` +
			`"stock_count":{"type":"integer","minimum":0},` +
			`"cost":{"type":"number","minimum":0,"default":0},` +
			`"description":{"type":"string"}},` +
			`"required":["product_name","stock_count"]}`),
		Invoke: func(ctx context.Context, input json.RawMessage) (string, error) {
			var p db.NewProduct
			if err := json.Unmarshal(input, &p); err != nil {
				return "", fmt.Errorf("%w: %v", ErrValidation, err)
			}
			if _, err := inv.AddProduct(ctx, p); err != nil {
				if errors.Is(err, db.ErrInvalidProduct) {
					return err.Error(), err
				}
				return addProductFailed, err
			}
			return addProductOK, nil
		},
	}
}

// ─────────────────────────────────────────────────────────────────
// current_date / ask_human
// ─────────────────────────────────────────────────────────────────

// CurrentDateTool returns today's date as YYYY-MM-DD.
func CurrentDateTool(now func() time.Time) Tool {
	return Tool{
		Name:        ToolCurrentDate,
		Description: "Use this when you need to get the current date. Takes no input.",
		Schema:      json.RawMessage(`{"type":"object","properties":{}}`),
		Invoke: func(context.Context, json.RawMessage) (string, error) {
			return now().Format("2006-01-02"), nil
		},
	}
}

// AskHumanTool puts a question to the user.
func AskHumanTool(human HumanInput) Tool {
	return Tool{
		Name: ToolAskHuman,
		Description: "Use this when you need to ask the human for additional information or clarification. " +
			"The input is the question for the human, for example 'What quantity should be added?'",
		Schema: json.RawMessage(`{"type":"object","properties":{"prompt":{"type":"string"}},"required":["prompt"]}`),
		Invoke: func(ctx context.Context, input json.RawMessage) (string, error) {
			prompt, err := stringField(input, "prompt")
			if err != nil {
				return "", err
			}
			return human.Ask(ctx, prompt)
		},
	}
}

// stringField reads a required string argument. A bare JSON string is
// accepted in place of the object.
func stringField(input json.RawMessage, field string) (string, error) {
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		var args map[string]any
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("%w: expected an object with %q", ErrValidation, field)
		}
		v, _ := args[field].(string)
		s = v
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: %q is required", ErrValidation, field)
	}
	return s, nil
}
