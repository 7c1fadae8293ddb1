// Package scraper builds the flight school directory: it renders the paginated
// listing with a Browser, extracts schools with selector fallbacks, checkpoints
// rows to CSV so an interrupted crawl resumes, fills in school websites from
// detail pages and cleans the final file.
package scraper
