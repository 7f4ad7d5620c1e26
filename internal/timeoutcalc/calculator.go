// Package timeoutcalc implements the adaptive Timeout Calculator from
// spec §4.6, with a 5-minute TTL cache keyed by input root.
package timeoutcalc

import (
	"sync"
	"time"
)

const (
	baseSeconds        = 600.0
	mib                = 1024.0 * 1024.0
	sizeTierOneLimit   = 50 * mib
	sizeTierTwoLimit   = 100 * mib
	ceilingSeconds     = 1800.0 // spec §4.6 contract; see DESIGN.md open-question decision
	conversionShare    = 0.60
	cacheTTL           = 5 * time.Minute
)

// Budget is the computed per-stage timeout allocation for a Job.
type Budget struct {
	TotalSeconds      int
	ConversionSeconds int
	RemainingSeconds  int // shared across analyze, compile, postprocess, validate
}

type cacheEntry struct {
	budget    Budget
	expiresAt time.Time
}

// Calculator computes and caches timeout budgets. One Calculator is
// shared across jobs; cache keyed by input root path.
type Calculator struct {
	mu    sync.Mutex
	cache map[string]cacheEntry
}

func New() *Calculator {
	return &Calculator{cache: make(map[string]cacheEntry)}
}

// Compute returns the timeout budget for an input of totalBytes across
// fileCount files, identified by cacheKey (typically the extracted
// project's root path).
func (c *Calculator) Compute(cacheKey string, totalBytes int64, fileCount int) Budget {
	c.mu.Lock()
	if entry, ok := c.cache[cacheKey]; ok && time.Now().UTC().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.budget
	}
	c.mu.Unlock()

	budget := compute(totalBytes, fileCount)

	c.mu.Lock()
	c.cache[cacheKey] = cacheEntry{budget: budget, expiresAt: time.Now().UTC().Add(cacheTTL)}
	c.mu.Unlock()

	return budget
}

func compute(totalBytes int64, fileCount int) Budget {
	b := float64(totalBytes)

	tierOne := min(b, sizeTierOneLimit)
	tierTwo := clamp(b-sizeTierOneLimit, 0, sizeTierTwoLimit-sizeTierOneLimit)
	tierThree := max(b-sizeTierTwoLimit, 0)

	sizeComponent := tierOne*(1.0/mib) + tierTwo*(2.0/mib) + tierThree*(5.0/mib)
	countComponent := float64(fileCount/10) * 1.0

	total := baseSeconds + sizeComponent + countComponent
	if total > ceilingSeconds {
		total = ceilingSeconds
	}

	totalInt := int(total)
	conversion := int(total * conversionShare)
	remaining := totalInt - conversion
	if remaining < 0 {
		remaining = 0
	}

	return Budget{
		TotalSeconds:      totalInt,
		ConversionSeconds: conversion,
		RemainingSeconds:  remaining,
	}
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
