// Package staging owns the temporary files written beside transcode outputs.
//
// Every temp file carries TempPrefix so SweepTemps can reclaim what a killed
// or crashed batch left behind before the next batch starts.
package staging
