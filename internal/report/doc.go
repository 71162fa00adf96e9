// Package report renders post-run views of a tracking session: a PNG of
// measured plate centres against the tracker's estimate (gonum/plot) and an
// HTML state timeline (go-echarts). Inputs come from live pipeline results
// or from rows in the session database.
package report
