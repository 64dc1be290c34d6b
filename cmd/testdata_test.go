package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCatalog = `
elements:
  - id: server1
    kind: ResourceContainer
    resource: file:/models/default.resourceenvironment
  - id: server2
    kind: ResourceContainer
    resource: file:/models/default.resourceenvironment
target_groups:
  - id: tg1
    resource: file:/models/default.spd
    unit: server1
    elements: [server1, server2]
    min: 2
    max: 4
policies:
  - id: scaleOut
    resource: file:/models/default.spd
    target_group: tg1
    step_value: 1
  - id: scaleIn
    resource: file:/models/default.spd
    target_group: tg1
    step_value: -1
measuring_points:
  - id: mp1
    resource: file:/models/default.monitorrepository
    metric: responseTime
    container: server1
`

const testSLO = `
objectives:
  - id: responseTime
    measuring_point: mp1
    upper:
      hard: 10
      soft: 8
`

// writeTestFile writes content to name inside dir and returns the path.
func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
