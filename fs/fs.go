// Package appfs holds the files embedded into the binaries.
package appfs

import "embed"

//go:embed assets migrations/*.sql templates/email/*
var FS embed.FS
