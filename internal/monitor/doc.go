// Package monitor defines the types shared by the page-check pipeline and the
// Checker that runs a single URL through it.
//
// A check is strictly sequential: fetch the page, classify the markup, capture a
// screenshot when the page is script-heavy, analyze the text or image with the
// model, then hand the Report to every configured Reporter. Each step converts
// its own failure into data; nothing in a check panics or aborts the caller.
package monitor
