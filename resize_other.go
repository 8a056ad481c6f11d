//go:build !unix

package main

import "context"

func notifyResize(context.Context, func()) {}
