package main

import "github.com/purestorage/4grep/rootpath"

func resolveDefaultRoot() (string, error) {
	return rootpath.Resolve()
}
