// view_table.go shows one dashboard listing (inventory, orders or
// expiry) as a scrollable table.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/DachengChen/shelfcare/db"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const dashboardTimeout = 8 * time.Second

// Dashboard serves the fixed-shape listings. *db.DB implements it.
type Dashboard interface {
	ListInventory(ctx context.Context) ([]db.Product, error)
	ListOrders(ctx context.Context) ([]db.Order, error)
	ListExpiry(ctx context.Context) ([]db.ExpiryBatch, error)
}

type rowLoader func(ctx context.Context) ([][]string, error)

type TableView struct {
	name    string
	title   string
	columns []table.Column
	load    rowLoader
	table   table.Model
	rows    int
	loading bool
	err     error
	loaded  time.Time
	width   int
	height  int
}

func newTableView(name, title string, columns []table.Column, load rowLoader) *TableView {
	t := table.New(table.WithColumns(columns), table.WithFocused(true), table.WithHeight(10))
	t.SetStyles(tableStyles())
	return &TableView{name: name, title: title, columns: columns, load: load, table: t}
}

// NewInventoryView lists every product.
func NewInventoryView(d Dashboard) *TableView {
	return newTableView("Inventory", "Inventory", []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Product", Width: 24},
		{Title: "Supplier", Width: 18},
		{Title: "Category", Width: 14},
		{Title: "Stock", Width: 7},
		{Title: "Cost", Width: 8},
		{Title: "Description", Width: 30},
	}, func(ctx context.Context) ([][]string, error) {
		products, err := d.ListInventory(ctx)
		if err != nil {
			return nil, err
		}
		return productRows(products), nil
	})
}

// NewOrdersView lists every purchase order.
func NewOrdersView(d Dashboard) *TableView {
	return newTableView("Orders", "Orders", []table.Column{
		{Title: "Order", Width: 7},
		{Title: "Product", Width: 24},
		{Title: "Ordered", Width: 11},
		{Title: "Qty", Width: 7},
		{Title: "Expected", Width: 11},
	}, func(ctx context.Context) ([][]string, error) {
		orders, err := d.ListOrders(ctx)
		if err != nil {
			return nil, err
		}
		return orderRows(orders), nil
	})
}

// NewExpiryView lists batches by expiry date.
func NewExpiryView(d Dashboard) *TableView {
	return newTableView("Expiry", "Expiry", []table.Column{
		{Title: "Batch", Width: 7},
		{Title: "Product", Width: 24},
		{Title: "Expires", Width: 11},
		{Title: "Qty", Width: 7},
	}, func(ctx context.Context) ([][]string, error) {
		batches, err := d.ListExpiry(ctx)
		if err != nil {
			return nil, err
		}
		return expiryRows(batches), nil
	})
}

func (v *TableView) Name() string         { return v.name }
func (v *TableView) WantsTextInput() bool { return false }

func (v *TableView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.table.SetWidth(width - 2)
	v.table.SetHeight(max(height-3, 3))
}

func (v *TableView) ShortHelp() []KeyBinding {
	return []KeyBinding{
		{Key: "r", Desc: "refresh"},
		{Key: "↑/↓", Desc: "move"},
		{Key: "Tab", Desc: "next view"},
	}
}

func (v *TableView) Init() tea.Cmd {
	return v.fetch()
}

func (v *TableView) fetch() tea.Cmd {
	v.loading = true
	name, load := v.name, v.load
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dashboardTimeout)
		defer cancel()
		rows, err := load(ctx)
		return TableDataMsg{Tab: name, Rows: rows, Err: err}
	}
}

func (v *TableView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case TableDataMsg:
		if msg.Tab != v.name {
			return v, nil
		}
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			rows := make([]table.Row, len(msg.Rows))
			for i, r := range msg.Rows {
				rows[i] = table.Row(r)
			}
			v.table.SetRows(rows)
			v.rows = len(rows)
			v.loaded = time.Now()
		}
		return v, nil

	case tea.KeyMsg:
		if msg.String() == "r" {
			return v, v.fetch()
		}
		var cmd tea.Cmd
		v.table, cmd = v.table.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *TableView) View() string {
	status := StyleDimmed.Render(fmt.Sprintf("%d rows", v.rows))
	switch {
	case v.loading:
		status = StyleDimmed.Render("loading...")
	case v.err != nil:
		status = StyleError.Render("Failed to fetch " + v.title + " data: " + v.err.Error())
	case !v.loaded.IsZero():
		status += StyleDimmed.Render(" · updated " + v.loaded.Format("15:04:05"))
	}
	header := "  " + StyleTitle.Render(v.title) + "  " + status
	return lipgloss.JoinVertical(lipgloss.Left, header, v.table.View())
}

func productRows(products []db.Product) [][]string {
	out := make([][]string, len(products))
	for i, p := range products {
		cost := "-"
		if p.Cost != nil {
			cost = strconv.FormatFloat(*p.Cost, 'f', 2, 64)
		}
		stock := "-"
		if p.StockCount != nil {
			stock = strconv.FormatInt(*p.StockCount, 10)
		}
		out[i] = []string{
			strconv.FormatInt(p.ID, 10),
			deref(p.ProductName),
			deref(p.Supplier),
			deref(p.Category),
			stock,
			cost,
			deref(p.Description),
		}
	}
	return out
}

func orderRows(orders []db.Order) [][]string {
	out := make([][]string, len(orders))
	for i, o := range orders {
		out[i] = []string{
			strconv.FormatInt(o.OrderID, 10),
			deref(o.ProductName),
			deref(o.OrderDate),
			strconv.FormatInt(o.Quantity, 10),
			deref(o.DateExpected),
		}
	}
	return out
}

func expiryRows(batches []db.ExpiryBatch) [][]string {
	out := make([][]string, len(batches))
	for i, b := range batches {
		out[i] = []string{
			strconv.FormatInt(b.BatchID, 10),
			deref(b.ProductName),
			b.ExpiryDate,
			strconv.FormatInt(b.Quantity, 10),
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
