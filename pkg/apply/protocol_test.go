package apply

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/michelin/ns4kafka-go/pkg/resource"
)

var _ = Describe("Apply protocol", func() {
	var (
		f   *fixture
		ctx context.Context
	)

	newTopic := func(name string, configs map[string]string) *resource.Resource {
		r, err := resource.New(resource.KindTopic, "", name, resource.TopicSpec{Partitions: 6, ReplicationFactor: 3, Configs: configs})
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	BeforeEach(func() {
		f = newFixture()
		ctx = f.user
	})

	Describe("idempotence", func() {
		It("reports created once and unchanged afterwards", func() {
			statuses := []resource.ApplyStatus{}
			for range 3 {
				res, err := f.ctrl.Apply(ctx, "test", newTopic("test.clicks", nil), false)
				Expect(err).NotTo(HaveOccurred())
				statuses = append(statuses, res.Status)
			}
			Expect(statuses).To(Equal([]resource.ApplyStatus{
				resource.StatusCreated, resource.StatusUnchanged, resource.StatusUnchanged,
			}))
		})

		It("treats a label change as a change", func() {
			_, err := f.ctrl.Apply(ctx, "test", newTopic("test.clicks", nil), false)
			Expect(err).NotTo(HaveOccurred())

			labelled := newTopic("test.clicks", nil)
			labelled.Metadata.Labels = map[string]string{"team": "web"}
			res, err := f.ctrl.Apply(ctx, "test", labelled, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(resource.StatusChanged))
		})
	})

	Describe("dry-run", func() {
		It("leaves the store and the audit trail untouched", func() {
			for _, dry := range []bool{true, true} {
				res, err := f.ctrl.Apply(ctx, "test", newTopic("test.clicks", nil), dry)
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Status).To(Equal(resource.StatusCreated))
			}
			stored, err := f.repo.List(context.Background(), resource.KindTopic, "test")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(BeEmpty())
			Expect(f.events.all()).To(BeEmpty())
		})

		It("reports the change an update would make", func() {
			_, err := f.ctrl.Apply(ctx, "test", newTopic("test.clicks", nil), false)
			Expect(err).NotTo(HaveOccurred())

			res, err := f.ctrl.Apply(ctx, "test", newTopic("test.clicks", map[string]string{"cleanup.policy": "compact"}), true)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(resource.StatusChanged))

			stored, err := f.ctrl.Get(context.Background(), resource.KindTopic, "test", "test.clicks")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Spec).NotTo(HaveKey("configs"))
		})
	})

	Describe("round trip", func() {
		It("stores the declared spec unchanged", func() {
			in := newTopic("test.clicks", map[string]string{"retention.ms": "60000", "min.insync.replicas": "2"})
			_, err := f.ctrl.Apply(ctx, "test", in, false)
			Expect(err).NotTo(HaveOccurred())

			out, err := f.ctrl.Get(context.Background(), resource.KindTopic, "test", "test.clicks")
			Expect(err).NotTo(HaveOccurred())
			Expect(resource.SpecEqual(in.Spec, out.Spec)).To(BeTrue())
		})

		It("audits exactly what was persisted", func() {
			res, err := f.ctrl.Apply(ctx, "test", newTopic("test.clicks", nil), false)
			Expect(err).NotTo(HaveOccurred())

			events := f.events.all()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Operation).To(Equal(resource.StatusCreated))
			Expect(events[0].Metadata.Cluster).To(Equal("local"))
			Expect(resource.SpecEqual(events[0].After, res.Resource.Spec)).To(BeTrue())
		})
	})

	Describe("rejections", func() {
		It("never persists a partially valid resource", func() {
			_, err := f.ctrl.Apply(ctx, "test", newTopic("other.clicks", nil), false)
			rej, ok := AsRejected(err)
			Expect(ok).To(BeTrue())
			Expect(rej.Stage).To(Equal(StageOwnership))

			_, err = f.ctrl.Get(context.Background(), resource.KindTopic, "test", "other.clicks")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})
})
