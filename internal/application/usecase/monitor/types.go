package monitor

import "derivagg/internal/application/port"

type Repository = port.SnapshotRepository

type Sink = port.Sink
