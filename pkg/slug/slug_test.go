// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package slug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arcanumhq/arcanum/pkg/slug"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Thursday Table", "thursday-table"},
		{"accents", "Café des Héros", "cafe-des-heros"},
		{"punctuation", "Curse of the Amber Crown!", "curse-of-the-amber-crown"},
		{"collapsed_hyphens", "a  --  b", "a-b"},
		{"trimmed", "  Night Owls  ", "night-owls"},
		{"numbers", "Season 2: Return", "season-2-return"},
		{"empty", "", ""},
		{"only_symbols", "!!!", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, slug.From(tc.input))
		})
	}
}
