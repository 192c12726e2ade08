// Package csm implements cascaded shadow map math and the multi-GPU
// ring buffer that pipelines cascade rendering across a secondary
// adapter.
package csm

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CascadeCount is fixed at 4 cascades, per the renderer's configuration
// surface (cascades_count is read but pinned to this value in the
// core).
const CascadeCount = 4

// Camera is the minimal camera state the cascade-split and frustum math
// needs.
type Camera struct {
	View   mgl32.Mat4
	Fov    float32
	Aspect float32
	Near   float32
	Far    float32
}

// Cascades holds one frame's worth of cascade projection matrices and
// the far-plane distance each cascade covers, laid out for direct
// upload into a per-frame uniform buffer.
type Cascades struct {
	ProjViews [CascadeCount]mgl32.Mat4
	Splits    [CascadeCount]float32
}

// ComputeSplits partitions [near, far] into CascadeCount slices using a
// blend of logarithmic and uniform splits controlled by lambda: lambda
// 0 is pure uniform, lambda 1 is pure logarithmic (tighter near-camera
// shadows at the cost of coarser far cascades).
func ComputeSplits(near, far, lambda float32) [CascadeCount]float32 {
	var splits [CascadeCount]float32
	clipRange := far - near
	ratio := float64(far / near)
	for i := 0; i < CascadeCount; i++ {
		p := float32(i+1) / float32(CascadeCount)
		logSplit := near * float32(math.Pow(ratio, float64(p)))
		uniform := near + clipRange*p
		splits[i] = lambda*(logSplit-uniform) + uniform
	}
	return splits
}

// ndcFrustumCorners are the 8 corners of a canonical clip-space cube
// with z in [0,1] (left-handed, DirectX-style clip space): the near
// face at z=0, the far face at z=1.
var ndcFrustumCorners = [8]mgl32.Vec3{
	{-1, -1, 0}, {-1, -1, 1},
	{-1, 1, 0}, {-1, 1, 1},
	{1, -1, 0}, {1, -1, 1},
	{1, 1, 0}, {1, 1, 1},
}

// Update recomputes every cascade's split distance and projection
// matrix for the given camera and (normalized) light direction. It
// mirrors the original engine's per-frame CSM update exactly: split
// distances first, then for each slice [curNear, curFar) a tight-fitting
// orthographic light-space projection.
func Update(camera Camera, lightDir mgl32.Vec3, lambda float32) Cascades {
	var out Cascades
	out.Splits = ComputeSplits(camera.Near, camera.Far, lambda)

	curNear := camera.Near
	for i := 0; i < CascadeCount; i++ {
		curFar := out.Splits[i]

		frustProj := PerspectiveLH(camera.Fov, camera.Aspect, curNear, curFar)
		frustProjView := frustProj.Mul4(camera.View).Inv()

		var corners [8]mgl32.Vec3
		var center mgl32.Vec3
		for j, c := range ndcFrustumCorners {
			clip := mgl32.Vec4{c[0], c[1], c[2], 1}
			world := frustProjView.Mul4x1(clip)
			world = world.Mul(1 / world.W())
			corners[j] = world.Vec3()
			center = center.Add(corners[j])
		}
		center = center.Mul(1.0 / 8.0)

		lightView := LookAtLH(center, center.Add(lightDir), mgl32.Vec3{0, 1, 0})

		minX, maxX := float32(math.MaxFloat32), -float32(math.MaxFloat32)
		minY, maxY := float32(math.MaxFloat32), -float32(math.MaxFloat32)
		minZ, maxZ := float32(math.MaxFloat32), -float32(math.MaxFloat32)
		for _, c := range corners {
			p := lightView.Mul4x1(mgl32.Vec4{c[0], c[1], c[2], 1})
			minX, maxX = fmin(minX, p.X()), fmax(maxX, p.X())
			minY, maxY = fmin(minY, p.Y()), fmax(maxY, p.Y())
			minZ, maxZ = fmin(minZ, p.Z()), fmax(maxZ, p.Z())
		}

		lightProj := OrthoLH(minX, maxX, minY, maxY, minZ, maxZ)
		out.ProjViews[i] = lightProj.Mul4(lightView)

		curNear = curFar
	}
	return out
}

func fmin(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func fmax(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// PerspectiveLH builds a left-handed perspective projection with clip-
// space z in [0,1] (DirectX convention). mathgl only ships the
// right-handed, z-in-[-1,1] OpenGL convention, so the renderer's fixed
// left-handed/zero-to-one convention (see the frame graph driver's
// depth comparisons) is implemented directly here, grounded on the
// original engine's left-handed projection math.
func PerspectiveLH(fovy, aspect, near, far float32) mgl32.Mat4 {
	f := float32(1 / math.Tan(float64(fovy)/2))
	return mgl32.Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, far / (far - near), 1,
		0, 0, -near * far / (far - near), 0,
	}
}

// OrthoLH builds a left-handed orthographic projection with clip-space
// z in [0,1], matching PerspectiveLH's convention.
func OrthoLH(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	return mgl32.Mat4{
		2 / (right - left), 0, 0, 0,
		0, 2 / (top - bottom), 0, 0,
		0, 0, 1 / (far - near), 0,
		-(right + left) / (right - left), -(top + bottom) / (top - bottom), -near / (far - near), 1,
	}
}

// LookAtLH builds a left-handed view matrix: forward points from eye
// toward center (unlike the right-handed convention, where forward
// points from center toward eye).
func LookAtLH(eye, center, up mgl32.Vec3) mgl32.Mat4 {
	zaxis := center.Sub(eye).Normalize()
	xaxis := up.Cross(zaxis).Normalize()
	yaxis := zaxis.Cross(xaxis)

	return mgl32.Mat4{
		xaxis.X(), yaxis.X(), zaxis.X(), 0,
		xaxis.Y(), yaxis.Y(), zaxis.Y(), 0,
		xaxis.Z(), yaxis.Z(), zaxis.Z(), 0,
		-xaxis.Dot(eye), -yaxis.Dot(eye), -zaxis.Dot(eye), 1,
	}
}
