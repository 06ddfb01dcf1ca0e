// Package dsl loads suite files written in Starlark.
//
// A suite file registers units on an orchestrator through a small set of
// builtins:
//
//	def web(s, ctx):
//	    s.install("nginx")
//	    s.service("nginx", "restart")
//
//	script(web, name="web", tags=["web"])
//	transcript("uptime", name="uptime")
//	restart()
//
// Unit functions run when the suite runs, not when the file loads, and
// receive a script builder plus a ctx struct describing the connection
// (host, port, user, identity, tags, debug). Builder methods mirror the
// script package in snake_case and return the builder so calls chain.
package dsl
