package health

import (
	"context"
	"fmt"

	"github.com/zero-day-ai/ekg/schema"
)

// MinServerVersion is the oldest Neo4j release whose Cypher supports the
// value type predicates used by compiled templates.
const MinServerVersion = "5.11"

// Verifier is implemented by stores that can check their connection.
type Verifier interface {
	VerifyConnectivity(ctx context.Context) error
}

// Querier runs a read query. Sessions returned by the store satisfy it.
type Querier interface {
	Execute(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// Pinger is implemented by the Redis-backed run journal.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchemaCheck verifies that the schema document at path parses and
// validates.
func SchemaCheck(path string) HealthStatus {
	if status := FileCheck(path); !status.IsHealthy() {
		return status
	}
	s, err := schema.Load(path)
	if err != nil {
		return NewUnhealthyStatus(
			fmt.Sprintf("schema '%s' is invalid", path),
			map[string]any{"path": path, "error": err.Error()},
		)
	}
	return NewHealthyStatus(fmt.Sprintf("schema '%s' %s loaded with %d node and %d relation types",
		s.Name(), s.Version(), len(s.NodeTypes()), len(s.RelationTypes())))
}

// StoreCheck verifies that the graph store accepts connections.
func StoreCheck(ctx context.Context, v Verifier) HealthStatus {
	if v == nil {
		return NewUnhealthyStatus("store is not configured", nil)
	}
	if err := v.VerifyConnectivity(ctx); err != nil {
		return NewUnhealthyStatus("store is unreachable", map[string]any{"error": err.Error()})
	}
	return NewHealthyStatus("store is reachable")
}

// ServerVersionCheck verifies that the store's kernel component meets
// minVersion. A version that cannot be read is reported as degraded.
func ServerVersionCheck(ctx context.Context, q Querier, minVersion string) HealthStatus {
	rows, err := q.Execute(ctx, "CALL dbms.components() YIELD name, versions, edition RETURN name, versions, edition", nil)
	if err != nil {
		return NewUnhealthyStatus("failed to read server components", map[string]any{"error": err.Error()})
	}

	for _, row := range rows {
		if name, _ := row["name"].(string); name != "Neo4j Kernel" {
			continue
		}
		versions, _ := row["versions"].([]any)
		if len(versions) == 0 {
			break
		}
		version := parseVersion(fmt.Sprint(versions[0]))
		if version == "" {
			break
		}
		edition, _ := row["edition"].(string)
		if !versionMeetsMinimum(version, minVersion) {
			return NewUnhealthyStatus(
				fmt.Sprintf("server version %s does not meet minimum requirement %s", version, minVersion),
				map[string]any{"version": version, "min_version": minVersion, "edition": edition},
			)
		}
		return NewHealthyStatus(fmt.Sprintf("server version %s (%s) meets requirement %s", version, edition, minVersion))
	}

	return NewDegradedStatus("could not determine server version", map[string]any{"min_version": minVersion})
}

// APOCCheck verifies that the APOC library is installed. Batched operations
// run through apoc.periodic.commit and apoc.periodic.iterate.
func APOCCheck(ctx context.Context, q Querier) HealthStatus {
	rows, err := q.Execute(ctx, "RETURN apoc.version() AS version", nil)
	if err != nil {
		return NewUnhealthyStatus("APOC is not installed", map[string]any{"error": err.Error()})
	}
	if len(rows) == 0 {
		return NewDegradedStatus("APOC version query returned no rows", nil)
	}
	version, _ := rows[0]["version"].(string)
	return NewHealthyStatus(fmt.Sprintf("APOC %s installed", version))
}

// RedisCheck verifies that the run journal's Redis server answers.
func RedisCheck(ctx context.Context, p Pinger) HealthStatus {
	if p == nil {
		return NewDegradedStatus("run journal is disabled; concurrent runs are not locked out", nil)
	}
	if err := p.Ping(ctx); err != nil {
		return NewUnhealthyStatus("redis is unreachable", map[string]any{"error": err.Error()})
	}
	return NewHealthyStatus("redis is reachable")
}
