package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingHook struct {
	ctxs []HookCtx
}

func (h *recordingHook) Func(ctx HookCtx) {
	h.ctxs = append(h.ctxs, ctx)
}

var _ = Describe("HookableBase", func() {
	var (
		domain *HookableBase
		pos    *HookPos
	)

	BeforeEach(func() {
		domain = &HookableBase{}
		pos = &HookPos{Name: "SomethingHappened"}
	})

	It("should invoke registered hooks", func() {
		hook := &recordingHook{}
		domain.AcceptHook(hook)

		domain.InvokeHook(HookCtx{Pos: pos, Item: 42})

		Expect(hook.ctxs).To(HaveLen(1))
		Expect(hook.ctxs[0].Pos).To(BeIdenticalTo(pos))
		Expect(hook.ctxs[0].Item).To(Equal(42))
	})

	It("should invoke every hook in registration order", func() {
		hook1 := &recordingHook{}
		hook2 := &recordingHook{}
		domain.AcceptHook(hook1)
		domain.AcceptHook(hook2)

		domain.InvokeHook(HookCtx{Pos: pos})

		Expect(domain.NumHooks()).To(Equal(2))
		Expect(domain.Hooks()[0]).To(BeIdenticalTo(hook1))
		Expect(domain.Hooks()[1]).To(BeIdenticalTo(hook2))
		Expect(hook1.ctxs).To(HaveLen(1))
		Expect(hook2.ctxs).To(HaveLen(1))
	})

	It("should reject registering the same hook twice", func() {
		hook := &recordingHook{}
		domain.AcceptHook(hook)

		Expect(func() {
			domain.AcceptHook(hook)
		}).To(Panic())
	})
})
