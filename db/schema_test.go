package db

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectOrdersSchema(mock sqlmock.Sqlmock, sampleErr error) {
	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "default", "is_pk"}).
			AddRow("order_id", "integer", "NO", "nextval('orders_order_id_seq'::regclass)", true).
			AddRow("product_id", "integer", "NO", "", false).
			AddRow("date_expected", "date", "YES", "", false))
	mock.ExpectQuery(regexp.QuoteMeta(foreignKeysQuery)).
		WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "column_name", "table_name", "column_name"}).
			AddRow("orders_product_id_fkey", "product_id", "products", "id"))

	sample := mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."orders" LIMIT 3`))
	if sampleErr != nil {
		sample.WillReturnError(sampleErr)
		return
	}
	sample.WillReturnRows(sqlmock.NewRows([]string{"order_id", "product_id", "date_expected"}).
		AddRow(int64(1), int64(3), nil))
}

func TestSchemaDescriptor(t *testing.T) {
	d, mock := newTestDB(t)
	expectOrdersSchema(mock, nil)

	got, err := d.SchemaDescriptor(context.Background(), "orders")
	require.NoError(t, err)

	want := "CREATE TABLE \"orders\" (\n" +
		"\t\"order_id\" integer NOT NULL DEFAULT nextval('orders_order_id_seq'::regclass),\n" +
		"\t\"product_id\" integer NOT NULL,\n" +
		"\t\"date_expected\" date,\n" +
		"\tPRIMARY KEY (\"order_id\"),\n" +
		"\tFOREIGN KEY (\"product_id\") REFERENCES \"products\" (\"id\")\n" +
		")\n\n" +
		"/*\n1 rows from orders table:\n" +
		"order_id\tproduct_id\tdate_expected\n" +
		"1\t3\tNULL\n" +
		"*/"
	assert.Equal(t, want, got)
	assertSQLMock(t, mock)
}

func TestSchemaDescriptorWithoutSamples(t *testing.T) {
	d, mock := newTestDB(t)
	expectOrdersSchema(mock, errors.New("permission denied"))

	got, err := d.SchemaDescriptor(context.Background(), "orders")
	require.NoError(t, err)
	assert.NotContains(t, got, "rows from")
	assert.Contains(t, got, `FOREIGN KEY ("product_id")`)
	assertSQLMock(t, mock)
}

func TestFetchTableSchemaMissingTable(t *testing.T) {
	d, mock := newTestDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("public", "suppliers").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "default", "is_pk"}))

	_, err := d.FetchTableSchema(context.Background(), "", "suppliers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table not found")
	assertSQLMock(t, mock)
}

func TestFormatSchemaContextSeparatesTables(t *testing.T) {
	got := FormatSchemaContext([]*TableSchema{
		{Name: "a", Columns: []ColumnInfo{{Name: "x", DataType: "text", IsNullable: true}}},
		{Name: "b", Columns: []ColumnInfo{{Name: "y", DataType: "integer", IsPK: true}}},
	})
	assert.Equal(t, "CREATE TABLE \"a\" (\n\t\"x\" text\n)\n\n"+
		"CREATE TABLE \"b\" (\n\t\"y\" integer NOT NULL,\n\tPRIMARY KEY (\"y\")\n)", got)
}
