package nl2sql

import (
	"fmt"
	"strings"
)

const synthesisPrefix = `You are a PostgreSQL expert. Given an input question, first create a syntactically correct PostgreSQL query to run, then look at the results of the query and return the answer to the input question.
Unless the user specifies in the question a specific number of examples to obtain, query for at most %d results using the LIMIT clause as per PostgreSQL. You can order the results to return the most informative data in the database.
Never query for all columns from a table. You must query only the columns that are needed to answer the question. Wrap each column name in double quotes (") to denote them as delimited identifiers.
Pay attention to use only the column names you can see in the tables below. Be careful to not query for columns that do not exist. Also, pay attention to which column is in which table.
Pay attention to use CURRENT_DATE to get the current date, if the question involves "today".
Expiry information and orders relate to products through "product_id"; queries about them will need a JOIN, so review column names carefully.

Only use the following tables:
%s

Please only respond with the SQL query.

Below are a number of examples of questions and their corresponding SQL queries.`

const exampleTemplate = "User input: %s\nSQL query: %s"

const rephraseTemplate = `Given the following user question, corresponding SQL query, and SQL result, answer the user question.
Please provide a concise answer, and ensure to only answer the user question provided.
If a list is returned, please make sure to also mention these items up to an extent (max 5), not ignore them.
Please do not provide the schema or any other internal information not requested.

Question: %s
SQL Query: %s
SQL Result: %s
Answer: `

// RenderSynthesisPrompt builds the few-shot prompt: instructions, schema,
// examples, then the question awaiting completion.
func RenderSynthesisPrompt(question, schema string, examples []Example, topK int) string {
	if topK <= 0 {
		topK = DefaultTopK
	}
	parts := make([]string, 0, len(examples)+2)
	parts = append(parts, fmt.Sprintf(synthesisPrefix, topK, schema))
	for _, ex := range examples {
		parts = append(parts, fmt.Sprintf(exampleTemplate, ex.Question, ex.SQL))
	}
	parts = append(parts, fmt.Sprintf(exampleTemplate, question, ""))
	return strings.Join(parts, "\n\n")
}

// RenderRephrasePrompt fills the answer template.
func RenderRephrasePrompt(question, sql, result string) string {
	return fmt.Sprintf(rephraseTemplate, question, sql, result)
}
