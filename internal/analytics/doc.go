// Package analytics records pageviews and turns them into dashboard time series.
//
// Recording is asynchronous: the HTTP beacon hands each view to a Recorder, which
// batches views in memory and writes them to a PageViewStore in the background.
// Reads go through Service, which resolves a named range in the viewer's
// timezone, buckets the views by hour, day, week or month and summarises the top
// paths and referrers.
package analytics
