package graphql

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// SubscriptionOperation is the subscription field a router client asked
// for, with its arguments resolved to strings.
type SubscriptionOperation struct {
	Name      string
	Arguments map[string]string
}

// ParseSubscriptionOperation extracts the first field of the first
// operation in the query. Arguments are resolved from inline string
// literals or from string-valued variables; every other argument shape is
// dropped. Returns false when the query holds no operation field.
func ParseSubscriptionOperation(query string, variables map[string]any) (*SubscriptionOperation, bool) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return nil, false
	}

	for _, operation := range doc.Operations {
		for _, selection := range operation.SelectionSet {
			field, ok := selection.(*ast.Field)
			if !ok {
				continue
			}

			arguments := make(map[string]string, len(field.Arguments))
			for _, arg := range field.Arguments {
				if arg.Value == nil {
					continue
				}
				switch arg.Value.Kind {
				case ast.StringValue:
					arguments[arg.Name] = arg.Value.Raw
				case ast.Variable:
					if value, ok := variables[arg.Value.Raw].(string); ok {
						arguments[arg.Name] = value
					}
				}
			}

			return &SubscriptionOperation{Name: field.Name, Arguments: arguments}, true
		}
	}

	return nil, false
}
