// Package web embeds the sample site content served when no content
// directories are configured.
package web

import (
	"embed"
	"io/fs"
)

//go:embed img uploads static
var assets embed.FS

//go:embed articles
var articles embed.FS

// Assets returns the asset store rooted so that "img/safe.svg" resolves the
// locator "/img/safe.svg".
func Assets() fs.FS {
	return assets
}

// Articles returns the sample article tree.
func Articles() fs.FS {
	sub, err := fs.Sub(articles, "articles")
	if err != nil {
		panic(err)
	}

	return sub
}
