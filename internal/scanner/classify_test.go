package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/codeaudit/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path     string
		expected types.FileCategory
	}{
		{"main.go", types.CategorySource},
		{"internal/server/handler.go", types.CategorySource},
		{"src/lib.rs", types.CategorySource},
		{"internal/server/handler_test.go", types.CategoryTest},
		{"tests/integration.rs", types.CategoryTest},
		{"pkg/test_utils.py", types.CategoryTest},
		{"web/app.spec.ts", types.CategoryTest},
		{"Dockerfile", types.CategoryInfrastructure},
		{"build/Dockerfile.prod", types.CategoryInfrastructure},
		{"docker-compose.yml", types.CategoryInfrastructure},
		{"scripts/deploy.sh", types.CategoryInfrastructure},
		{".github/workflows/ci.yml", types.CategoryInfrastructure},
		{"go.mod", types.CategoryInfrastructure},
		{"Cargo.toml", types.CategoryInfrastructure},
		{"Makefile", types.CategoryInfrastructure},
		{"README.md", types.CategoryDocumentation},
		{"docs/design.go", types.CategoryDocumentation},
		{"LICENSE", types.CategoryDocumentation},
		{"notes.txt", types.CategoryDocumentation},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.path))
		})
	}
}

func TestIsShellScript(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		lines    []string
		expected bool
	}{
		{"sh extension", "run.sh", nil, true},
		{"bash extension", "run.bash", nil, true},
		{"bash shebang", "run", []string{"#!/bin/bash"}, true},
		{"env shebang", "run", []string{"#!/usr/bin/env bash"}, true},
		{"python shebang", "run", []string{"#!/usr/bin/env python3"}, false},
		{"no shebang", "run", []string{"echo hi"}, false},
		{"empty", "run", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsShellScript(tt.path, tt.lines))
		})
	}
}
