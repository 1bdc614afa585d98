package gltf

import (
	"fmt"

	gltflib "github.com/qmuntal/gltf"
)

// checkDocument rejects null array entries. The JSON decoder keeps them as
// nil pointers and every later stage indexes these arrays directly.
func checkDocument(doc *gltflib.Document) error {
	checks := []error{
		noNull("buffers", doc.Buffers),
		noNull("bufferViews", doc.BufferViews),
		noNull("accessors", doc.Accessors),
		noNull("meshes", doc.Meshes),
		noNull("nodes", doc.Nodes),
		noNull("scenes", doc.Scenes),
		noNull("materials", doc.Materials),
		noNull("textures", doc.Textures),
		noNull("images", doc.Images),
		noNull("animations", doc.Animations),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	for i, m := range doc.Meshes {
		if err := noNull(fmt.Sprintf("meshes[%d].primitives", i), m.Primitives); err != nil {
			return err
		}
	}
	for i, a := range doc.Animations {
		if err := noNull(fmt.Sprintf("animations[%d].channels", i), a.Channels); err != nil {
			return err
		}
		if err := noNull(fmt.Sprintf("animations[%d].samplers", i), a.Samplers); err != nil {
			return err
		}
	}
	return nil
}

func noNull[T any](what string, s []*T) error {
	for i, v := range s {
		if v == nil {
			return fmt.Errorf("%s[%d] is null", what, i)
		}
	}
	return nil
}

// checkAccessor verifies that every element an accessor addresses lies
// inside its buffer view, so the modeler reads never slice past it.
// Sparse storage is rejected.
func checkAccessor(doc *gltflib.Document, index int, acc *gltflib.Accessor) error {
	if acc.Sparse != nil {
		return fmt.Errorf("accessor %d: sparse storage is not supported", index)
	}
	if acc.BufferView == nil {
		return fmt.Errorf("accessor %d has no bufferView", index)
	}
	view, err := bufferViewBytes(doc, int(*acc.BufferView))
	if err != nil {
		return fmt.Errorf("accessor %d: %w", index, err)
	}
	elem := int(gltflib.SizeOfElement(acc.ComponentType, acc.Type))
	if elem == 0 {
		return fmt.Errorf("accessor %d: unknown element type", index)
	}
	stride := int(doc.BufferViews[*acc.BufferView].ByteStride)
	if stride == 0 {
		stride = elem
	}
	if stride < elem {
		return fmt.Errorf("accessor %d: byteStride %d is below element size %d", index, stride, elem)
	}
	need := int(acc.ByteOffset)
	if acc.Count > 0 {
		need += stride*(int(acc.Count)-1) + elem
	}
	if need > len(view) {
		return fmt.Errorf("accessor %d needs %d bytes, bufferView %d has %d", index, need, *acc.BufferView, len(view))
	}
	return nil
}
