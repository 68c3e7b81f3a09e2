package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tnqbao/gau-vm-orchestrator/config"
)

var ErrKeyNotFound = errors.New("ssh key pair not found")

const (
	privateKeyObject = "id_rsa"
	publicKeyObject  = "id_rsa.pub"
)

type SSHKeyPair struct {
	PrivateKey string
	PublicKey  string
}

// SSHKeyStore is what the API and the result consumer need from the key
// store.
type SSHKeyStore interface {
	StoreKeyPair(ctx context.Context, vmName string, pair SSHKeyPair) error
	FetchKeyPair(ctx context.Context, vmName string) (*SSHKeyPair, error)
	DeleteKeyPair(ctx context.Context, vmName string) error
	Ping(ctx context.Context) error
}

// KeyStore keeps one SSH key pair per VM in an S3-compatible bucket,
// authenticated with the storage account credentials.
type KeyStore struct {
	Admin  *madmin.AdminClient
	Client *minio.Client
	Bucket string
}

// InitKeyStore fails with a *config.MissingEnvError when the storage account
// credentials are absent; SSH key endpoints then answer 503.
func InitKeyStore(cfg *config.EnvConfig) (*KeyStore, error) {
	name, key, err := cfg.StorageCredentials()
	if err != nil {
		return nil, err
	}

	endpoint := cfg.KeyStore.Endpoint
	if endpoint == "" {
		return nil, &config.MissingEnvError{Name: "KEYSTORE_ENDPOINT"}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(name, key, ""),
		Secure: cfg.KeyStore.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key store client: %w", err)
	}

	admin, err := madmin.New(endpoint, name, key, cfg.KeyStore.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key store admin client: %w", err)
	}

	store := &KeyStore{
		Admin:  admin,
		Client: client,
		Bucket: cfg.KeyStore.Bucket,
	}

	if err := store.ensureBucket(context.Background()); err != nil {
		return nil, err
	}

	return store, nil
}

func (k *KeyStore) ensureBucket(ctx context.Context) error {
	exists, err := k.Client.BucketExists(ctx, k.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check key store bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := k.Client.MakeBucket(ctx, k.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create key store bucket: %w", err)
	}
	return nil
}

func (k *KeyStore) StoreKeyPair(ctx context.Context, vmName string, pair SSHKeyPair) error {
	if err := k.put(ctx, objectKey(vmName, privateKeyObject), pair.PrivateKey); err != nil {
		return err
	}
	return k.put(ctx, objectKey(vmName, publicKeyObject), pair.PublicKey)
}

func (k *KeyStore) FetchKeyPair(ctx context.Context, vmName string) (*SSHKeyPair, error) {
	private, err := k.get(ctx, objectKey(vmName, privateKeyObject))
	if err != nil {
		return nil, err
	}
	public, err := k.get(ctx, objectKey(vmName, publicKeyObject))
	if err != nil {
		return nil, err
	}
	return &SSHKeyPair{PrivateKey: private, PublicKey: public}, nil
}

func (k *KeyStore) DeleteKeyPair(ctx context.Context, vmName string) error {
	for _, object := range []string{privateKeyObject, publicKeyObject} {
		err := k.Client.RemoveObject(ctx, k.Bucket, objectKey(vmName, object), minio.RemoveObjectOptions{})
		if err != nil {
			return fmt.Errorf("failed to delete %s for %s: %w", object, vmName, err)
		}
	}
	return nil
}

// Ping reports whether the key store server is online.
func (k *KeyStore) Ping(ctx context.Context) error {
	info, err := k.Admin.ServerInfo(ctx)
	if err != nil {
		return err
	}
	if info.Mode != "" && info.Mode != "online" {
		return fmt.Errorf("key store is %s", info.Mode)
	}
	return nil
}

// objectKey is used verbatim; names are checked against the resource name
// format before they reach the store, so no cleaning happens here.
func objectKey(vmName, object string) string {
	return vmName + "/" + object
}

func (k *KeyStore) put(ctx context.Context, object, content string) error {
	_, err := k.Client.PutObject(ctx, k.Bucket, object,
		bytes.NewReader([]byte(content)), int64(len(content)),
		minio.PutObjectOptions{ContentType: "text/plain"},
	)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", object, err)
	}
	return nil
}

func (k *KeyStore) get(ctx context.Context, object string) (string, error) {
	obj, err := k.Client.GetObject(ctx, k.Bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return "", translateKeyError(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", translateKeyError(err)
	}
	return string(data), nil
}

func translateKeyError(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrKeyNotFound
	}
	return err
}
