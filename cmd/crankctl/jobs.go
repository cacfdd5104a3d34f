package main

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	crank25519 "crank25519.mleku.dev"
	"crank25519.mleku.dev/client"
	"crank25519.mleku.dev/dsl"
)

// jobFlags describe the shape of a job
type jobFlags struct {
	groups    []int
	witnesses bool
	count     int
}

func (f *jobFlags) job(kind string) (dsl.Job, error) {
	switch kind {
	case "multiscalar":
		return dsl.MultiscalarJob{Groups: f.groups, Witnesses: f.witnesses}, nil
	case "ristretto-hash":
		return dsl.RistrettoHashJob{Seeds: f.count}, nil
	case "montgomery-hash":
		return dsl.MontgomeryHashJob{Seeds: f.count}, nil
	case "roundtrip":
		return dsl.EdwardsRoundTripJob{Points: f.count}, nil
	}
	return nil, errors.Errorf("unknown job %q", kind)
}

type compiled struct {
	Job          string     `yaml:"job"`
	Instructions int        `yaml:"instructions"`
	Layout       dsl.Layout `yaml:"layout"`
	Listing      []string   `yaml:"listing"`
}

func compileCmd() *cobra.Command {
	f := &jobFlags{}
	cmd := &cobra.Command{
		Use:       "compile JOB",
		Short:     "Print the layout and instruction listing of a job",
		Long:      "JOB is one of multiscalar, ristretto-hash, montgomery-hash or roundtrip.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"multiscalar", "ristretto-hash", "montgomery-hash", "roundtrip"},
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := f.job(args[0])
			if err != nil {
				return err
			}
			prog, err := job.Compile()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(compiled{
				Job:          args[0],
				Instructions: prog.Len(),
				Layout:       prog.Layout,
				Listing:      prog.Listing(),
			})
			if err != nil {
				return errors.Wrap(err, "encoding layout")
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	flags := cmd.Flags()
	flags.IntSliceVar(&f.groups, "groups", []int{1}, "points per multiscalar result")
	flags.BoolVar(&f.witnesses, "witnesses", false, "multiscalar points carry inverse square roots")
	flags.IntVar(&f.count, "count", 1, "inputs of a hash or roundtrip job")
	return cmd
}

func multiscalarCmd(v *viper.Viper) *cobra.Command {
	var (
		points, scalars []string
		groups          []int
		witnesses       bool
	)
	cmd := &cobra.Command{
		Use:   "multiscalar",
		Short: "Compute multiscalar products of Ristretto points",
		Long: `Every --point is a hex Ristretto encoding and every --scalar a hex
canonical little-endian scalar, paired in order. --groups splits the pairs
into consecutive products; by default all pairs form one product.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc, err := decodeHex[crank25519.CompressedRistretto]("point", points)
			if err != nil {
				return err
			}
			raw, err := decodeHex[[32]byte]("scalar", scalars)
			if err != nil {
				return err
			}
			ss := make([]crank25519.Scalar, len(raw))
			for i := range raw {
				if ss[i], err = crank25519.ScalarFromCanonicalBytes(raw[i][:]); err != nil {
					return errors.WithMessagef(err, "scalar %d", i)
				}
			}
			if len(groups) == 0 {
				groups = []int{len(enc)}
			}

			job := dsl.MultiscalarJob{Groups: groups, Witnesses: witnesses}
			prog, err := job.Compile()
			if err != nil {
				return err
			}
			input, err := job.EncodeInput(enc, ss)
			if err != nil {
				return err
			}
			res, err := run(cmd, v, prog, input)
			if err != nil {
				return err
			}
			out, err := res.Ristretto()
			if err != nil {
				return err
			}
			return printHex(cmd.OutOrStdout(), out)
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVar(&points, "point", nil, "hex Ristretto point, repeatable")
	flags.StringArrayVar(&scalars, "scalar", nil, "hex scalar, repeatable")
	flags.IntSliceVar(&groups, "groups", nil, "points per product")
	flags.BoolVar(&witnesses, "witnesses", false, "decompress each point in one instruction using a supplied witness")
	return cmd
}

func hashCmd(v *viper.Viper) *cobra.Command {
	var flavor string
	cmd := &cobra.Command{
		Use:   "hash MESSAGE...",
		Short: "Hash messages to curve points",
		Long: `Each message is mapped to a tagged 32-byte seed and hashed to a point.
The ristretto flavor prints Ristretto encodings; the montgomery flavor prints
RFC 8032 encodings of points in the prime-order subgroup. The uniform flavor
hashes each message to 64 bytes, cranks the Elligator image of both halves
and prints the Ristretto encoding of their sum.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch flavor {
			case "ristretto":
				return hashRistretto(cmd, v, args)
			case "montgomery":
				return hashMontgomery(cmd, v, args)
			case "uniform":
				return hashUniform(cmd, v, args)
			}
			return errors.Errorf("unknown flavor %q", flavor)
		},
	}
	cmd.Flags().StringVar(&flavor, "flavor", "ristretto", "ristretto, montgomery or uniform")
	return cmd
}

func seeds(tag string, msgs []string) [][32]byte {
	out := make([][32]byte, len(msgs))
	for i, msg := range msgs {
		out[i] = crank25519.HashToSeed(tag, []byte(msg))
	}
	return out
}

// crankElligator runs the Ristretto Elligator map over seeds
func crankElligator(cmd *cobra.Command, v *viper.Viper, seeds [][32]byte) ([]*crank25519.EdwardsPoint, error) {
	job := dsl.RistrettoHashJob{Seeds: len(seeds)}
	prog, err := job.Compile()
	if err != nil {
		return nil, err
	}
	input, err := job.EncodeInput(seeds)
	if err != nil {
		return nil, err
	}
	res, err := run(cmd, v, prog, input)
	if err != nil {
		return nil, err
	}
	return res.Points()
}

func hashRistretto(cmd *cobra.Command, v *viper.Viper, msgs []string) error {
	points, err := crankElligator(cmd, v, seeds(crank25519.TagRistrettoSeed, msgs))
	if err != nil {
		return err
	}
	out := make([]crank25519.CompressedRistretto, len(points))
	for i, p := range points {
		out[i] = crank25519.CompressRistretto(p)
	}
	return printHex(cmd.OutOrStdout(), out)
}

func hashMontgomery(cmd *cobra.Command, v *viper.Viper, msgs []string) error {
	job := dsl.MontgomeryHashJob{Seeds: len(msgs)}
	prog, err := job.Compile()
	if err != nil {
		return err
	}
	input, err := job.EncodeInput(seeds(crank25519.TagMontgomerySeed, msgs))
	if err != nil {
		return err
	}
	res, err := run(cmd, v, prog, input)
	if err != nil {
		return err
	}
	out, err := res.Encodings()
	if err != nil {
		return err
	}
	return printHex(cmd.OutOrStdout(), out)
}

// hashUniform cranks both halves of every uniform hash, then checks each sum
// against the direct map before printing it
func hashUniform(cmd *cobra.Command, v *viper.Viper, msgs []string) error {
	uniform := make([][64]byte, len(msgs))
	halves := make([][32]byte, 0, 2*len(msgs))
	for i, msg := range msgs {
		uniform[i] = crank25519.HashToUniform(crank25519.TagRistrettoSeed, []byte(msg))
		var lo, hi [32]byte
		copy(lo[:], uniform[i][:32])
		copy(hi[:], uniform[i][32:])
		halves = append(halves, lo, hi)
	}
	points, err := crankElligator(cmd, v, halves)
	if err != nil {
		return err
	}
	out := make([]crank25519.CompressedRistretto, len(msgs))
	for i := range msgs {
		sum := new(crank25519.EdwardsPoint).Add(points[2*i], points[2*i+1])
		want, err := crank25519.RistrettoFromUniformBytes(uniform[i][:])
		if err != nil {
			return err
		}
		if !crank25519.RistrettoEqual(sum, want) {
			return errors.Errorf("cranked hash of message %d disagrees with the direct map", i)
		}
		out[i] = crank25519.CompressRistretto(sum)
	}
	return printHex(cmd.OutOrStdout(), out)
}

func roundTripCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "roundtrip ENCODING...",
		Short: "Decompress and recompress RFC 8032 point encodings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := decodeHex[crank25519.EdwardsY]("encoding", args)
			if err != nil {
				return err
			}
			job := dsl.EdwardsRoundTripJob{Points: len(points)}
			prog, err := job.Compile()
			if err != nil {
				return err
			}
			input, err := job.EncodeInput(points)
			if err != nil {
				return err
			}
			res, err := run(cmd, v, prog, input)
			if err != nil {
				return err
			}
			out, err := res.Encodings()
			if err != nil {
				return err
			}
			return printHex(cmd.OutOrStdout(), out)
		},
	}
}

// run executes prog on a fresh session
func run(cmd *cobra.Command, v *viper.Viper, prog *dsl.Program, input []byte) (*client.Result, error) {
	s, err := setup(cmd, v)
	if err != nil {
		return nil, err
	}
	defer s.close()
	res, err := s.client.Run(cmd.Context(), prog, input)
	if err != nil {
		return nil, err
	}
	logger.Infow("job finished", "cranks", res.Cranks, "compute", res.Buffers.Compute)
	return res, nil
}

// decodeHex parses 32-byte hex arguments
func decodeHex[T ~[32]byte](what string, in []string) ([]T, error) {
	out := make([]T, len(in))
	for i, s := range in {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %d", what, i)
		}
		if len(b) != len(out[i]) {
			return nil, errors.Errorf("%s %d is %d bytes, want %d", what, i, len(b), len(out[i]))
		}
		copy(out[i][:], b)
	}
	return out, nil
}

func printHex[T ~[32]byte](w io.Writer, values []T) error {
	for _, v := range values {
		if _, err := fmt.Fprintln(w, hex.EncodeToString(v[:])); err != nil {
			return err
		}
	}
	return nil
}
