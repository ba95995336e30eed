package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// NetworkCheck verifies TCP connectivity to a host and port.
// It uses the provided context for timeout and cancellation control.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	status := health.NetworkCheck(ctx, "neo4j.internal", 7687)
//	if status.IsUnhealthy() {
//	    log.Println("Cannot reach neo4j.internal:7687")
//	}
func NetworkCheck(ctx context.Context, host string, port int) HealthStatus {
	if host == "" {
		return NewUnhealthyStatus("host cannot be empty", nil)
	}

	if port <= 0 || port > 65535 {
		return NewUnhealthyStatus(
			fmt.Sprintf("invalid port number: %d", port),
			map[string]any{"port": port},
		)
	}

	// Use context with timeout if not already set
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return NewUnhealthyStatus(
			fmt.Sprintf("failed to connect to %s", address),
			map[string]any{
				"host":  host,
				"port":  port,
				"error": err.Error(),
			},
		)
	}

	// Close connection immediately
	conn.Close()

	return NewHealthyStatus(
		fmt.Sprintf("successfully connected to %s", address),
	)
}

// defaultPorts maps connection URI schemes to the port used when the URI
// names none.
var defaultPorts = map[string]int{
	"neo4j":     7687,
	"neo4j+s":   7687,
	"neo4j+ssc": 7687,
	"bolt":      7687,
	"bolt+s":    7687,
	"bolt+ssc":  7687,
	"redis":     6379,
	"rediss":    6379,
}

// EndpointCheck verifies TCP connectivity to the host named by a connection
// URI such as "neo4j://localhost:7687" or "redis://cache:6379/0". A URI
// without a port uses the scheme's default port.
func EndpointCheck(ctx context.Context, rawURL string) HealthStatus {
	if rawURL == "" {
		return NewUnhealthyStatus("endpoint URI cannot be empty", nil)
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		details := map[string]any{"uri": rawURL}
		if err != nil {
			details["error"] = err.Error()
		}
		return NewUnhealthyStatus(fmt.Sprintf("invalid endpoint URI %q", rawURL), details)
	}

	port := defaultPorts[u.Scheme]
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return NewUnhealthyStatus(
				fmt.Sprintf("invalid port in endpoint URI %q", rawURL),
				map[string]any{"uri": rawURL, "error": err.Error()},
			)
		}
	}
	return NetworkCheck(ctx, u.Hostname(), port)
}

// FileCheck verifies that a file or directory exists at the specified path.
// It returns healthy if the path exists, unhealthy otherwise.
//
// Example:
//
//	status := health.FileCheck("schema.yaml")
//	if status.IsUnhealthy() {
//	    log.Fatal("schema.yaml does not exist")
//	}
func FileCheck(path string) HealthStatus {
	if path == "" {
		return NewUnhealthyStatus("path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewUnhealthyStatus(
				fmt.Sprintf("path '%s' does not exist", path),
				map[string]any{
					"path": path,
				},
			)
		}

		return NewUnhealthyStatus(
			fmt.Sprintf("failed to stat path '%s'", path),
			map[string]any{
				"path":  path,
				"error": err.Error(),
			},
		)
	}

	fileType := "file"
	if info.IsDir() {
		fileType = "directory"
	}

	return NewHealthyStatus(
		fmt.Sprintf("%s '%s' exists", fileType, path),
	)
}

// Combine aggregates multiple health checks into a single status.
// The result follows this priority:
//   - If any check is unhealthy, the result is unhealthy
//   - If any check is degraded (and none unhealthy), the result is degraded
//   - If all checks are healthy, the result is healthy
//
// Example:
//
//	status := health.Combine(
//	    health.FileCheck("schema.yaml"),
//	    health.StoreCheck(ctx, st),
//	    health.APOCCheck(ctx, session),
//	)
//	if status.IsUnhealthy() {
//	    log.Fatal("dependencies not met")
//	}
func Combine(checks ...HealthStatus) HealthStatus {
	if len(checks) == 0 {
		return NewHealthyStatus("no checks provided")
	}

	var unhealthyChecks []string
	var degradedChecks []string
	var healthyCount int

	for _, check := range checks {
		switch check.Status {
		case StatusUnhealthy:
			msg := check.Message
			if msg == "" {
				msg = "unnamed check"
			}
			unhealthyChecks = append(unhealthyChecks, msg)
		case StatusDegraded:
			msg := check.Message
			if msg == "" {
				msg = "unnamed check"
			}
			degradedChecks = append(degradedChecks, msg)
		case StatusHealthy:
			healthyCount++
		}
	}

	// Return unhealthy if any check is unhealthy
	if len(unhealthyChecks) > 0 {
		return NewUnhealthyStatus(
			fmt.Sprintf("%d check(s) failed", len(unhealthyChecks)),
			map[string]any{
				"total":         len(checks),
				"unhealthy":     len(unhealthyChecks),
				"degraded":      len(degradedChecks),
				"healthy":       healthyCount,
				"failed_checks": unhealthyChecks,
			},
		)
	}

	// Return degraded if any check is degraded
	if len(degradedChecks) > 0 {
		return NewDegradedStatus(
			fmt.Sprintf("%d check(s) degraded", len(degradedChecks)),
			map[string]any{
				"total":           len(checks),
				"degraded":        len(degradedChecks),
				"healthy":         healthyCount,
				"degraded_checks": degradedChecks,
			},
		)
	}

	// All checks are healthy
	return NewHealthyStatus(
		fmt.Sprintf("all %d check(s) passed", len(checks)),
	)
}

// parseVersion extracts the numeric version from a server version string as
// reported by dbms.components(), e.g. "5.26.1", "5.11.0-enterprise" or
// "2025.01.0". Returns "" when none is found.
func parseVersion(output string) string {
	lines := strings.Split(output, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)

		for _, field := range strings.Fields(line) {
			field = strings.TrimPrefix(field, "v")
			field = strings.TrimPrefix(field, "V")
			if strings.Contains(field, ".") && containsDigit(field) {
				if version := extractVersionNumber(field); version != "" {
					return version
				}
			}
		}
	}

	return ""
}

// containsDigit reports whether s has a digit.
func containsDigit(s string) bool {
	for _, c := range s {
		if c >= '0' && c <= '9' {
			return true
		}
	}
	return false
}

// extractVersionNumber keeps the leading major.minor.patch of a version
// field, dropping edition or build suffixes ("5.11.0-enterprise" -> "5.11.0").
func extractVersionNumber(s string) string {
	var version strings.Builder
	dotCount := 0

	for i, c := range s {
		if c >= '0' && c <= '9' {
			version.WriteRune(c)
		} else if c == '.' && dotCount < 2 && i > 0 && version.Len() > 0 {
			version.WriteRune(c)
			dotCount++
		} else if version.Len() > 0 {
			break
		}
	}

	result := version.String()
	if strings.Contains(result, ".") && len(result) > 2 {
		return result
	}
	return ""
}

// versionMeetsMinimum reports whether version >= minVersion, comparing
// dot-separated parts numerically. Missing parts count as zero, so "5.11"
// equals "5.11.0".
func versionMeetsMinimum(version, minVersion string) bool {
	vParts := strings.Split(version, ".")
	minParts := strings.Split(minVersion, ".")

	maxLen := len(vParts)
	if len(minParts) > maxLen {
		maxLen = len(minParts)
	}

	for i := 0; i < maxLen; i++ {
		vPart := 0
		minPart := 0

		if i < len(vParts) {
			vPart, _ = strconv.Atoi(strings.TrimSpace(vParts[i]))
		}
		if i < len(minParts) {
			minPart, _ = strconv.Atoi(strings.TrimSpace(minParts[i]))
		}

		if vPart > minPart {
			return true
		} else if vPart < minPart {
			return false
		}
	}
	return true
}
