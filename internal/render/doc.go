// Package render draws a day's curve as a text table, an HTML line chart or
// a PNG image.
package render
