package main

import (
	"fmt"
	"time"

	"ytsummarize/internal/retry"
	"ytsummarize/internal/services"
)

// configError classifies err so the process exits with the usage status.
func configError(err error) error {
	if err == nil {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "", "", "", err)
}

func retryPolicy(attempts, baseMillis, maxMillis int) retry.Policy {
	return retry.Policy{
		Attempts:  attempts,
		BaseDelay: time.Duration(baseMillis) * time.Millisecond,
		MaxDelay:  time.Duration(maxMillis) * time.Millisecond,
	}
}

func humanBytes(v int64) string {
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}
	div := int64(unit)
	exp := 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(v)/float64(div), "KMGTPEZY"[exp])
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
