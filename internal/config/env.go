package config

import (
	"fmt"
	"os"
	"strconv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DATASETGEN_"

// applyEnvOverrides overrides settings from DATASETGEN_* variables.
// A malformed numeric value is an error rather than silently ignored.
func applyEnvOverrides(c *Config) error {
	setString(&c.Function.Name, "FUNCTION")
	setString(&c.ReqXDayDist, "REQ_X_DAY_DIST")
	setString(&c.StartDate, "START_DATE")
	setString(&c.DestFolder, "DEST_FOLDER")
	setString(&c.Format, "FORMAT")
	setString(&c.Partition, "PARTITION")
	setString(&c.OnDayError, "ON_DAY_ERROR")
	setString(&c.MetricsAddr, "METRICS_ADDR")
	setString(&c.S3.Bucket, "S3_BUCKET")
	setString(&c.S3.Prefix, "S3_PREFIX")
	setString(&c.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.S3.Region, "S3_REGION")
	setString(&c.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&c.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")

	ints := []struct {
		dst *int
		key string
	}{
		{&c.NumDays, "NUM_DAYS"},
		{&c.NumReqXDay, "NUM_REQ_X_DAY"},
		{&c.MaxBufLen, "MAX_BUF_LEN"},
		{&c.Workers, "WORKERS"},
		{&c.SaveAttempts, "SAVE_ATTEMPTS"},
	}
	for _, e := range ints {
		if err := setInt(e.dst, e.key); err != nil {
			return err
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "SEED"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSEED: %w", EnvPrefix, err)
		}
		c.Seed = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "S3_PATH_STYLE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sS3_PATH_STYLE: %w", EnvPrefix, err)
		}
		c.S3.PathStyle = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}
