// Package plugin implements discovery, validation, and lifecycle management
// for backend plugins. Plugin code is compiled in and registered as named
// constructs; an on-disk descriptor file (plugin.yaml) binds a plugin
// directory to a construct and declares its metadata. Discovery turns a
// directory tree into usable backend factories without rebuilding the kit's
// callers.
package plugin
