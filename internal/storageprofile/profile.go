// Package storageprofile models the per-warehouse object storage backend
// configuration and vends time-bounded credentials for a namespace or
// tabular location; each vendor package documents how narrowly its
// credential is scoped. A warehouse carries exactly one profile;
// the kind tag in catalogstore.Warehouse.StorageProfileKind selects which
// concrete struct the JSON payload decodes into.
package storageprofile

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"catalog.icecat.io/internal/icebergerr"
)

// Kind mirrors catalogstore.StorageProfileKind without importing it, so
// this package stays independent of the transactional store.
type Kind string

const (
	KindS3   Kind = "s3"
	KindGCS  Kind = "gcs"
	KindADLS Kind = "adls"
	KindHDFS Kind = "hdfs"
	KindTest Kind = "test"
)

// Profile is the sum type every concrete profile implements.
// RequireAllowedLocation, DefaultNamespaceLocation and
// DefaultTabularLocation are pure path functions; vending credentials is the
// job of the kind-specific vendor packages (s3, adls, gcs, hdfs), which are
// handed a decoded Profile by internal/iceberg.
type Profile interface {
	Kind() Kind
	// BaseLocation is the warehouse root all namespace/tabular locations
	// must fall under.
	BaseLocation() string
}

// S3Profile configures an AWS S3 (or S3-compatible) warehouse.
type S3Profile struct {
	Bucket        string `json:"bucket"`
	Region        string `json:"region"`
	Prefix        string `json:"prefix,omitempty"`
	Endpoint      string `json:"endpoint,omitempty"`
	PathStyle     bool   `json:"path_style,omitempty"`
	AssumeRoleARN string `json:"assume_role_arn,omitempty"`
	ExternalID    string `json:"external_id,omitempty"`
}

func (p S3Profile) Kind() Kind { return KindS3 }
func (p S3Profile) BaseLocation() string {
	return fmt.Sprintf("s3://%s", path.Join(p.Bucket, p.Prefix))
}

// GCSProfile configures a Google Cloud Storage warehouse.
type GCSProfile struct {
	Bucket               string `json:"bucket"`
	Prefix               string `json:"prefix,omitempty"`
	ServiceAccountEmail  string `json:"service_account_email,omitempty"`
	WorkloadIdentityPool string `json:"workload_identity_pool,omitempty"`
}

func (p GCSProfile) Kind() Kind { return KindGCS }
func (p GCSProfile) BaseLocation() string {
	return fmt.Sprintf("gs://%s", path.Join(p.Bucket, p.Prefix))
}

// ADLSProfile configures an Azure Data Lake Storage Gen2 warehouse.
type ADLSProfile struct {
	StorageAccount string `json:"storage_account"`
	Filesystem     string `json:"filesystem"`
	Prefix         string `json:"prefix,omitempty"`
	TenantID       string `json:"tenant_id"`
	ClientID       string `json:"client_id"`
}

func (p ADLSProfile) Kind() Kind { return KindADLS }
func (p ADLSProfile) BaseLocation() string {
	return fmt.Sprintf("abfss://%s@%s.dfs.core.windows.net/%s", p.Filesystem, p.StorageAccount, p.Prefix)
}

// HDFSProfile configures an HDFS (or HDFS-compatible POSIX-ish) warehouse.
// No credential vending applies; writers authenticate out of band (Kerberos
// ticket, mounted keytab) and this profile only governs path layout.
type HDFSProfile struct {
	NameNode string `json:"namenode"`
	BasePath string `json:"base_path"`
}

func (p HDFSProfile) Kind() Kind { return KindHDFS }
func (p HDFSProfile) BaseLocation() string {
	return fmt.Sprintf("hdfs://%s%s", p.NameNode, p.BasePath)
}

// TestProfile is a local-filesystem stand-in used by integration tests and
// single-node deployments that have no real object store configured.
type TestProfile struct {
	RootDir string `json:"root_dir"`
}

func (p TestProfile) Kind() Kind         { return KindTest }
func (p TestProfile) BaseLocation() string { return "file://" + p.RootDir }

// Decode parses a warehouse's stored JSON profile according to its kind tag.
func Decode(kind Kind, raw json.RawMessage) (Profile, error) {
	switch kind {
	case KindS3:
		var p S3Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, icebergerr.InvalidLocation("decoding s3 profile: " + err.Error())
		}
		return p, nil
	case KindGCS:
		var p GCSProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, icebergerr.InvalidLocation("decoding gcs profile: " + err.Error())
		}
		return p, nil
	case KindADLS:
		var p ADLSProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, icebergerr.InvalidLocation("decoding adls profile: " + err.Error())
		}
		return p, nil
	case KindHDFS:
		var p HDFSProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, icebergerr.InvalidLocation("decoding hdfs profile: " + err.Error())
		}
		return p, nil
	case KindTest:
		var p TestProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, icebergerr.InvalidLocation("decoding test profile: " + err.Error())
		}
		return p, nil
	default:
		return nil, icebergerr.InvalidLocation("unknown storage profile kind: " + string(kind))
	}
}

// RequireAllowedLocation rejects a requested location that escapes the
// warehouse's configured base location, preventing a crafted metadata
// location from pointing a table or view outside its warehouse's bucket.
func RequireAllowedLocation(p Profile, location string) error {
	base := strings.TrimSuffix(p.BaseLocation(), "/")
	if location != base && !strings.HasPrefix(location, base+"/") {
		return icebergerr.InvalidLocation(fmt.Sprintf("location %q is not under warehouse base location %q", location, base))
	}
	return nil
}

// DefaultNamespaceLocation joins the warehouse base with a namespace's name
// parts to produce its default storage location when the caller doesn't
// supply one explicitly.
func DefaultNamespaceLocation(p Profile, nameParts []string) string {
	return strings.TrimSuffix(p.BaseLocation(), "/") + "/" + path.Join(nameParts...)
}

// DefaultTabularLocation joins a namespace location with a tabular name to
// produce its default storage location.
func DefaultTabularLocation(namespaceLocation, tabularName string) string {
	return strings.TrimSuffix(namespaceLocation, "/") + "/" + tabularName
}
