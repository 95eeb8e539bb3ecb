// Command neoqlc compiles GraphQL operations into Cypher statements
// without a database, for inspecting what the engine would run.
//
//	neoqlc check --schema schema.graphql
//	neoqlc compile --schema schema.graphql --query '{ movies { title } }'
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
