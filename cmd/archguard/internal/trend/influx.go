// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package trend

import (
	"context"
	"errors"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the InfluxDB measurement snapshots are written to.
const Measurement = "archguard_snapshot"

// InfluxConfig locates an InfluxDB bucket.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// Project tags every point so several repositories can share a bucket.
	Project string
}

// Validate checks that the connection fields are set.
func (c InfluxConfig) Validate() error {
	switch {
	case c.URL == "":
		return errors.New("influx url is required")
	case c.Org == "":
		return errors.New("influx org is required")
	case c.Bucket == "":
		return errors.New("influx bucket is required")
	}
	return nil
}

// Exporter writes snapshots to InfluxDB.
type Exporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	project  string
}

// NewExporter creates an exporter with a blocking write API.
func NewExporter(cfg InfluxConfig) (*Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Exporter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		project:  cfg.Project,
	}, nil
}

// Point converts a snapshot into an InfluxDB point.
func Point(s Snapshot, project string) *write.Point {
	tags := map[string]string{}
	if project != "" {
		tags["project"] = project
	}
	if s.RiskLevel != "" {
		tags["risk_level"] = s.RiskLevel
	}
	return influxdb2.NewPoint(
		Measurement,
		tags,
		map[string]interface{}{
			"architecture_score": s.ArchitectureScore,
			"total_modules":      s.TotalModules,
			"total_edges":        s.TotalEdges,
			"cycle_count":        s.CycleCount,
			"core_modules":       s.CoreModules,
			"violation_count":    s.ViolationCount,
			"avg_instability":    s.AvgInstability,
			"high_risk_modules":  s.HighRiskModules,
		},
		s.Time(),
	)
}

// Export writes snapshots in one request.
func (e *Exporter) Export(ctx context.Context, snaps []Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(snaps))
	for _, s := range snaps {
		points = append(points, Point(s, e.project))
	}
	if err := e.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points to influx: %w", len(points), err)
	}
	return nil
}

// Close releases the client.
func (e *Exporter) Close() {
	if e.client != nil {
		e.client.Close()
	}
}
