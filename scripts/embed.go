// Package scripts bundles the query pack and the exclusion rule scripts.
//
// Layout:
//
//	queries/<language>/locals.scm           base local-scope query
//	queries/<language>/locals.optional.scm  fragments appended when the grammar supports them
//	rules/<language>.risor                  exclusion rules evaluated per reference
package scripts

import (
	"embed"
	"io/fs"
)

//go:embed queries rules
var FS embed.FS

// Queries returns the query pack rooted at queries/.
func Queries() fs.FS {
	return mustSub("queries")
}

// Rules returns the rule scripts rooted at rules/.
func Rules() fs.FS {
	return mustSub("rules")
}

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(FS, dir)
	if err != nil {
		panic("scripts: " + err.Error())
	}
	return sub
}
