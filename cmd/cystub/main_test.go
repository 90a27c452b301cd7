package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/cystub/sym"
)

func TestRootHelpListsEveryCommand(t *testing.T) {
	assert.NotContains(t, rootCmd.Long, "%s")
	for _, name := range sym.Commands() {
		assert.Contains(t, rootCmd.Long, sym.ForCommand(name)+" "+name, name)
		assert.Contains(t, rootCmd.Long, sym.Describe(name), name)

		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
			}
		}
		assert.True(t, found, "%s is registered", name)
	}
	assert.Equal(t, len(sym.Commands()), strings.Count(commandList(), "\n"))
}
