// Package naming renders library folder and file names from recognition
// results. Built-in presets cover Emby and Plex layouts; custom templates
// come from the record store. Rendered names are sanitized by replacing
// filesystem-invalid characters with full-width equivalents.
package naming
