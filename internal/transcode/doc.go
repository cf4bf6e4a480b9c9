// Package transcode runs per-file encode jobs through the probe, encode and
// tag stages and schedules them on a bounded worker pool.
//
// A Job moves Pending -> Probing -> Encoding -> Tagging -> Succeeded, or to
// Failed from any non-terminal state. Probe and encode failures are fatal to
// the job; tagging failures only add a warning. Jobs never share mutable
// state, so one failure never affects its siblings, and RunBatch always
// drives every job to a terminal state before returning its Report.
package transcode
