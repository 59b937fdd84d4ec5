package repository

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/bayleafwalker/artifact-resolver/internal/artifact"
	"github.com/bayleafwalker/artifact-resolver/internal/errdefs"
)

const (
	// DescriptorKey holds the descriptor bytes of the artifact.
	DescriptorKey = "descriptor"
	// ChecksumAnnotationPrefix + data key holds the hex SHA-1 of that entry.
	ChecksumAnnotationPrefix = "sha1.artifacts.bayleafwalker.io/"

	defaultType = "jar"
)

var (
	reNonDNS     = regexp.MustCompile(`[^a-z0-9-]+`)
	reNonDataKey = regexp.MustCompile(`[^-._a-zA-Z0-9]+`)
)

// ConfigMapReader reads artifact bytes stored in ConfigMaps, one ConfigMap
// per group:name:version (see ConfigMapName). Each file of the artifact is a
// data entry named by DataKey.
type ConfigMapReader struct {
	Client    client.Reader
	Namespace string
}

var _ MetadataReader = (*ConfigMapReader)(nil)

func NewConfigMapReader(c client.Reader, namespace string) (*ConfigMapReader, error) {
	if c == nil {
		return nil, &errdefs.ConfigurationError{Component: "configmap reader", Field: "client", Reason: "must not be nil"}
	}
	if strings.TrimSpace(namespace) == "" {
		return nil, &errdefs.ConfigurationError{Component: "configmap reader", Field: "namespace", Reason: "must not be empty"}
	}
	return &ConfigMapReader{Client: c, Namespace: namespace}, nil
}

func (r *ConfigMapReader) ReadRawData(ctx context.Context, c artifact.Coordinates, opts ReadOptions) ([]byte, error) {
	c = opts.apply(c)
	return r.read(ctx, c, DataKey(c), opts.Exempt)
}

func (r *ConfigMapReader) ReadMetadata(ctx context.Context, c artifact.Coordinates, exempt bool) ([]byte, error) {
	return r.read(ctx, c, DescriptorKey, exempt)
}

func (r *ConfigMapReader) read(ctx context.Context, c artifact.Coordinates, key string, exempt bool) ([]byte, error) {
	name := ConfigMapName(c)
	logger := log.FromContext(ctx).WithValues("configMap", name, "key", key)

	var cm corev1.ConfigMap
	if err := r.Client.Get(ctx, types.NamespacedName{Namespace: r.Namespace, Name: name}, &cm); err != nil {
		if apierrors.IsNotFound(err) {
			err = fmt.Errorf("configmap %s/%s: %w", r.Namespace, name, ErrNotFound)
		}
		return nil, &errdefs.MetadataReadError{Coordinates: c.String(), Err: err}
	}

	data, ok := cm.BinaryData[key]
	if !ok {
		s, found := cm.Data[key]
		if !found {
			return nil, &errdefs.MetadataReadError{
				Coordinates: c.String(),
				Err:         fmt.Errorf("key %q in configmap %s/%s: %w", key, r.Namespace, name, ErrNotFound),
			}
		}
		data = []byte(s)
	}

	if !exempt {
		if err := verify(cm.Annotations, key, data); err != nil {
			return nil, &errdefs.MetadataReadError{Coordinates: c.String(), Err: err}
		}
	}
	logger.V(1).Info("read artifact data", "bytes", len(data), "exempt", exempt)
	return data, nil
}

// verify checks data against its checksum annotation, if there is one.
func verify(annotations map[string]string, key string, data []byte) error {
	want, ok := annotations[ChecksumAnnotationPrefix+key]
	if !ok {
		return nil
	}
	got := Checksum(data)
	if !strings.EqualFold(strings.TrimSpace(want), got) {
		return fmt.Errorf("checksum mismatch for %q: expected %s, got %s", key, want, got)
	}
	return nil
}

// Checksum is the hex SHA-1 used in checksum annotations.
func Checksum(data []byte) string {
	h := sha1.Sum(data)
	return hex.EncodeToString(h[:])
}

// ConfigMapName returns the deterministic, DNS-safe ConfigMap name for the
// group:name:version of c. Classifier and type select data keys instead.
func ConfigMapName(c artifact.Coordinates) string {
	gav := c.Group + ":" + c.Name + ":" + c.Version
	h := sha1.Sum([]byte(gav))
	suffix := "-" + hex.EncodeToString(h[:])[:8]

	base := strings.ToLower(fmt.Sprintf("a-%s-%s-%s", c.Group, c.Name, c.Version))
	base = reNonDNS.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")

	// Bound length, keeping the hash suffix.
	if maxBase := 253 - len(suffix); len(base) > maxBase {
		base = strings.Trim(base[:maxBase], "-")
	}
	return base + suffix
}

// DataKey names the ConfigMap entry holding the file c designates:
// <name>[-<version>][-<classifier>].<type>, with "jar" as the default type.
func DataKey(c artifact.Coordinates) string {
	typ := c.Type
	if typ == "" {
		typ = defaultType
	}
	parts := []string{c.Name}
	if c.Version != "" {
		parts = append(parts, c.Version)
	}
	if c.Classifier != "" {
		parts = append(parts, c.Classifier)
	}
	key := strings.Join(parts, "-") + "." + typ
	return reNonDataKey.ReplaceAllString(key, "_")
}
