package showcase

import (
	"context"
	"strings"
)

const (
	GLTF = "gltf"
	GLB  = "glb"
	OBJ  = "obj"
	FBX  = "fbx"
	DAE  = "dae"
)

// ModelDecoder turns the bytes of a model file into a Model.
type ModelDecoder interface {
	Decode(name string, data []byte) (*Model, error)
}

// ResourceFunc reads a file referenced from inside a model, such as a glTF
// buffer or an OBJ material library. uri is as written in the model.
type ResourceFunc func(uri string) ([]byte, error)

// ResourceUser is implemented by decoders of formats that reference
// external files.
type ResourceUser interface {
	SetResources(ResourceFunc)
}

// FetchResources resolves uris against modelURL and reads them through f.
func FetchResources(ctx context.Context, f Fetcher, modelURL string) ResourceFunc {
	return func(uri string) ([]byte, error) {
		return f.Fetch(ctx, ResolveURL(modelURL, uri))
	}
}

// DecoderFactory returns the decoder for a file extension, or nil.
func DecoderFactory(format string) ModelDecoder {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case GLTF, GLB:
		return &GltfDecoder{}
	case OBJ:
		return &ObjDecoder{}
	case FBX:
		return &FbxDecoder{}
	case DAE:
		return &DaeDecoder{}
	}
	return nil
}
