package s3snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/m3rciful/moexbot/internal/domain"
)

type fakeObjects struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	raw, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(raw))}, nil
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = raw
	return &s3.PutObjectOutput{}, nil
}

func TestLoadMissingObject(t *testing.T) {
	p := newWithAPI(&fakeObjects{objects: map[string][]byte{}}, "b", "users.json")
	users, err := p.Load(context.Background())
	if err != nil || users != nil {
		t.Fatalf("users=%v err=%v", users, err)
	}
}

func TestSaveThenLoad(t *testing.T) {
	api := &fakeObjects{objects: map[string][]byte{}}
	p := newWithAPI(api, "b", "users.json")
	u := domain.NewUser(3, "carol")
	if err := u.AddList("18:45"); err != nil {
		t.Fatal(err)
	}
	if err := p.Save(context.Background(), []domain.User{u}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].Username != "carol" || len(got[0].Lists) != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestSaveError(t *testing.T) {
	p := newWithAPI(&fakeObjects{objects: map[string][]byte{}, putErr: errors.New("denied")}, "b", "k")
	if err := p.Save(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	if got := normaliseEndpoint("minio:9000", false); got != "http://minio:9000" {
		t.Fatalf("got %s", got)
	}
	if got := normaliseEndpoint("https://s3.example.com", false); got != "https://s3.example.com" {
		t.Fatalf("got %s", got)
	}
}
